// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package compact

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/trie"
	"github.com/bitmark-inc/bitmark-dbutils/verify"
	"github.com/bitmark-inc/logger"
)

// UnsparsifyResult - what an unsparsify pass did
type UnsparsifyResult struct {
	Visited  int            `json:"visited"`
	Copied   uint64         `json:"copied"`
	Present  uint64         `json:"present"`
	Missing  int            `json:"missing"`
	Batches  int            `json:"batches"`
	Findings int            `json:"findings"`
	Report   *verify.Report `json:"-"`

	// records removed from an overwritten destination
	Discarded uint64 `json:"discarded,omitempty"`
}

// Unsparsify - restore the trie below the roots from an authoritative source
//
// every reachable source node absent from dest is written; nodes
// absent from the source too are counted and left for the final
// verification of dest to report
func Unsparsify(dest *storage.Environment, source storage.Reader, roots []digest.Digest, options Options) (*UnsparsifyResult, error) {
	log := logger.New("unsparsify")

	batchSize, err := options.batchSize()
	if nil != err {
		return nil, err
	}

	result := &UnsparsifyResult{}
	meter := progress.New(log, "trie nodes copied", options.ProgressInterval)
	table := storage.Pool.TrieNodes

	var trx *storage.WriteTransaction

	commit := func() error {
		n := trx.Len()
		err := trx.Commit()
		trx = nil
		if nil != err {
			return err
		}
		result.Copied += uint64(n)
		result.Batches += 1
		meter.Add(uint64(n))
		return nil
	}

	w := trie.New(source)
	w.Missing = func(parent digest.Digest, hash digest.Digest) error {
		log.Warnf("source is missing node: %s  parent: %s", hash, parent)
		return nil
	}
	visit := func(hash digest.Digest, value []byte, node record.Node) error {
		if actual := record.HashOf(value); actual != hash {
			return fmt.Errorf("%w: source node: %s  actual: %s", fault.ErrCorruptEnvironment, hash, actual)
		}

		if nil == trx {
			var err error
			if trx, err = dest.BeginWrite(); nil != err {
				return err
			}
		}

		found, err := trx.Has(table, hash[:])
		if nil != err {
			return err
		}
		if found {
			result.Present += 1
			return nil
		}
		trx.Put(table, hash[:], value)

		if trx.Len() >= batchSize || (options.BatchBytes > 0 && trx.Bytes() >= options.BatchBytes) {
			if err := commit(); nil != err {
				return err
			}
			return options.stopped()
		}
		return nil
	}

	for _, root := range roots {
		if err = w.Walk(root, visit); nil != err {
			break
		}
	}
	if nil == err && nil != trx {
		err = commit()
	}
	if nil != trx {
		trx.Abort()
	}
	meter.Done()

	result.Visited = w.Visited().Len()
	result.Missing = w.MissingCount()

	if nil != err {
		log.Errorf("copy stopped after: %d batches  error: %s", result.Batches, err)
		return result, err
	}

	log.Infof("roots: %d  copied: %d  present: %d  missing: %d", len(roots), result.Copied, result.Present, result.Missing)

	rd, err := dest.BeginRead()
	if nil != err {
		return result, err
	}
	defer rd.Release()

	report, err := verify.Verify(rd, roots, verify.Options{
		Mode:             verify.Full,
		TrieOnly:         true,
		ProgressInterval: options.ProgressInterval,
	})
	if nil != err {
		return result, err
	}
	result.Report = report
	result.Findings = len(report.Findings)

	if !report.OK() {
		log.Errorf("destination still has: %d findings", result.Findings)
		return result, fmt.Errorf("%w: %d findings", fault.ErrIncompleteImport, result.Findings)
	}
	return result, nil
}
