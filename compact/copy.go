// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package compact

import (
	"fmt"
	"os"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// Destination - how Copy treats the destination environment
type Destination int

// destination modes
const (
	DestinationNew Destination = iota
	DestinationAppend
	DestinationOverwrite
)

var destinationNames = map[string]Destination{
	"new":       DestinationNew,
	"append":    DestinationAppend,
	"overwrite": DestinationOverwrite,
}

func (d Destination) String() string {
	for s, v := range destinationNames {
		if v == d {
			return s
		}
	}
	return fmt.Sprintf("Destination(%d)", int(d))
}

// ParseDestination - convert a command line destination mode
func ParseDestination(s string) (Destination, error) {
	if "" == s {
		return DestinationNew, nil
	}
	d, ok := destinationNames[s]
	if !ok {
		return DestinationNew, fmt.Errorf("%w: destination: %q", fault.ErrInvalidMode, s)
	}
	return d, nil
}

// Copy - write only the trie reachable from the roots into another environment
//
// new requires that nothing exists at destPath, append and overwrite
// require an existing environment there; overwrite empties its tables
// first and never touches files outside the store
func Copy(source *storage.Environment, destPath string, mode Destination, maxSize uint64, roots []digest.Digest, options Options) (*UnsparsifyResult, error) {
	log := logger.New("copy")

	if 0 == len(roots) {
		return nil, fault.ErrNoRoots
	}

	same, err := storage.SamePath(source.Path(), destPath)
	if nil != err {
		return nil, err
	}
	if same {
		return nil, fault.ErrSameEnvironment
	}

	switch mode {
	case DestinationNew:
		_, err = os.Stat(destPath)
		if nil == err {
			return nil, fmt.Errorf("%w: %s", fault.ErrDestinationExists, destPath)
		}
		if !os.IsNotExist(err) {
			return nil, fault.NewIoError(destPath, err)
		}
	case DestinationAppend, DestinationOverwrite:
		ok, err := storage.IsEnvironment(destPath)
		if nil != err {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s: %s", fault.ErrInvalidEnvironment, mode, destPath)
		}
	default:
		return nil, fault.ErrInvalidMode
	}

	dest, err := storage.Open(destPath, storage.ReadWrite, maxSize)
	if nil != err {
		return nil, err
	}
	defer dest.Close()

	discarded := uint64(0)
	if DestinationOverwrite == mode {
		log.Warnf("emptying destination: %s", destPath)
		discarded, err = discard(dest, options)
		if nil != err {
			log.Errorf("empty destination: %s  discarded: %d  error: %s", destPath, discarded, err)
			return &UnsparsifyResult{Discarded: discarded}, err
		}
	}

	rd, err := source.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	log.Infof("copy: %s -> %s  mode: %s  roots: %d", source.Path(), destPath, mode, len(roots))
	result, err := Unsparsify(dest, rd, roots, options)
	if nil != result {
		result.Discarded = discarded
	}
	return result, err
}

// delete the records of every table, keeping the version
func discard(env *storage.Environment, options Options) (uint64, error) {
	batchSize, err := options.batchSize()
	if nil != err {
		return 0, err
	}

	rd, err := env.BeginRead()
	if nil != err {
		return 0, err
	}
	defer rd.Release()

	deleted := uint64(0)
	var trx *storage.WriteTransaction

	commit := func() error {
		n := trx.Len()
		err := trx.Commit()
		trx = nil
		if nil != err {
			return err
		}
		deleted += uint64(n)
		return options.stopped()
	}

	for _, table := range storage.Tables() {
		err = storage.NewCursor(rd, table).Map(func(key []byte, value []byte) error {
			if nil == trx {
				var err error
				if trx, err = env.BeginWrite(); nil != err {
					return err
				}
			}
			trx.Delete(table, key)
			if trx.Len() >= batchSize {
				return commit()
			}
			return nil
		})
		if nil != err {
			break
		}
	}

	if nil == err && nil != trx {
		err = commit()
	}
	if nil != trx {
		trx.Abort()
	}
	return deleted, err
}
