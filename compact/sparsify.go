// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package compact

import (
	"time"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/trie"
	"github.com/bitmark-inc/logger"
)

// DefaultBatchSize - records per committed write batch
const DefaultBatchSize = 10000

// Options - batching of long running operations
type Options struct {
	BatchSize        int // records per write batch
	BatchBytes       int // bytes of puts per write batch, zero for no limit
	ProgressInterval time.Duration

	// closing this stops the operation after the current batch
	Shutdown <-chan struct{}
}

// SparsifyResult - what a sparsify pass did
type SparsifyResult struct {
	Retained int           `json:"retained"`
	Missing  int           `json:"missing"`
	Deleted  uint64        `json:"deleted"`
	Batches  int           `json:"batches"`
	LastKey  digest.Digest `json:"lastKey"`
}

// check for shutdown between batches
func (o Options) stopped() error {
	select {
	case <-o.Shutdown:
		return fault.ErrAborted
	default:
		return nil
	}
}

func (o Options) batchSize() (int, error) {
	switch {
	case o.BatchSize < 0:
		return 0, fault.ErrInvalidBatchSize
	case 0 == o.BatchSize:
		return DefaultBatchSize, nil
	default:
		return o.BatchSize, nil
	}
}

// Sparsify - delete every trie node not reachable from the roots
//
// reachability is computed completely from a snapshot before the
// first delete; an undecodable reachable node aborts with nothing
// deleted.  Deletes are committed in batches so an interrupted run
// leaves a consistent environment and can simply be repeated.
//
// an empty root set is refused as it would delete the whole trie
func Sparsify(env *storage.Environment, roots []digest.Digest, options Options) (*SparsifyResult, error) {
	log := logger.New("sparsify")

	if 0 == len(roots) {
		log.Error("no roots to retain")
		return nil, fault.ErrNoRoots
	}

	batchSize, err := options.batchSize()
	if nil != err {
		return nil, err
	}

	rd, err := env.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	result := &SparsifyResult{}

	// mark
	w := trie.New(rd)
	w.Missing = func(parent digest.Digest, hash digest.Digest) error {
		log.Warnf("retained node already absent: %s  parent: %s", hash, parent)
		return nil
	}
	for _, root := range roots {
		if err := w.Walk(root, nil); nil != err {
			log.Errorf("mark from root: %s  error: %s", root, err)
			return nil, err
		}
	}
	retained := w.Visited()
	result.Retained = retained.Len() - w.MissingCount()
	result.Missing = w.MissingCount()

	log.Infof("roots: %d  retained: %d  missing: %d", len(roots), result.Retained, result.Missing)

	// sweep
	meter := progress.New(log, "trie nodes deleted", options.ProgressInterval)
	table := storage.Pool.TrieNodes

	var trx *storage.WriteTransaction
	var pending digest.Digest

	commit := func() error {
		n := trx.Len()
		err := trx.Commit()
		trx = nil
		if nil != err {
			return err
		}
		result.Deleted += uint64(n)
		result.Batches += 1
		result.LastKey = pending
		meter.Add(uint64(n))
		return nil
	}

	err = storage.NewCursor(rd, table).Map(func(key []byte, value []byte) error {
		var hash digest.Digest
		if nil == digest.FromBytes(&hash, key) && retained.Has(hash) {
			return nil
		}

		if nil == trx {
			var err error
			if trx, err = env.BeginWrite(); nil != err {
				return err
			}
		}
		trx.Delete(table, key)
		copy(pending[:], key)

		if trx.Len() >= batchSize {
			if err := commit(); nil != err {
				return err
			}
			return options.stopped()
		}
		return nil
	})

	if nil == err && nil != trx {
		err = commit()
	}
	if nil != trx {
		trx.Abort()
	}
	meter.Done()

	if nil != err {
		log.Errorf("sweep stopped after: %d batches  error: %s", result.Batches, err)
		return result, err
	}

	log.Infof("deleted: %d  batches: %d", result.Deleted, result.Batches)
	return result, nil
}
