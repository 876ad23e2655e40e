// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"errors"
	"time"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/trie"
	"github.com/bitmark-inc/logger"
)

// Options - what to verify
type Options struct {
	Mode Mode

	// blocks whose state roots were removed by sparsify are not findings
	Sparsified bool

	// blocks allowed an absent parent, e.g. the first block of a slice
	RootBlocks []digest.Digest

	// skip the cross-checks of the blocks, block_deploys and deploys tables
	TrieOnly bool

	ProgressInterval time.Duration
}

// Verify - walk the trie from each root then cross-check the blocks
//
// storage errors are returned as errors; integrity problems are
// returned as findings in the report
func Verify(reader storage.Reader, roots []digest.Digest, options Options) (*Report, error) {
	log := logger.New("verify")
	report := newReport(options.Mode)

	meter := progress.New(log, "trie nodes verified", options.ProgressInterval)

	w := trie.New(reader)
	w.Missing = func(parent digest.Digest, hash digest.Digest) error {
		log.Warnf("dangling reference: %s -> %s", parent, hash)
		return report.add(Finding{
			Kind:  DanglingReference,
			Table: storage.Pool.TrieNodes.Name(),
			Key:   parent,
			Ref:   hash,
		})
	}
	w.Invalid = func(hash digest.Digest, value []byte, err error) error {
		log.Warnf("undecodable node: %s: %s", hash, err)
		return report.add(Finding{
			Kind:   UndecodableRecord,
			Table:  storage.Pool.TrieNodes.Name(),
			Key:    hash,
			Detail: err.Error(),
		})
	}
	visit := func(hash digest.Digest, value []byte, node record.Node) error {
		report.NodesVisited += 1
		meter.Add(1)
		if actual := record.HashOf(value); actual != hash {
			log.Warnf("hash mismatch: %s  actual: %s", hash, actual)
			return report.add(Finding{
				Kind:   HashMismatch,
				Table:  storage.Pool.TrieNodes.Name(),
				Key:    hash,
				Actual: actual,
			})
		}
		return nil
	}

	walked := trie.NewSet()
	for _, root := range roots {
		walked.Add(root)
		err := w.Walk(root, visit)
		if errors.Is(err, errStop) {
			return report, nil
		}
		if nil != err {
			return report, err
		}
	}
	meter.Done()

	if !options.TrieOnly {
		err := checkBlocks(log, reader, walked, options, report)
		if errors.Is(err, errStop) {
			return report, nil
		}
		if nil != err {
			return report, err
		}
	}

	log.Infof("roots: %d  nodes: %d  blocks: %d  findings: %d", len(roots), report.NodesVisited, report.BlocksChecked, len(report.Findings))
	return report, nil
}

// cross-check every block record
//
// a state root that was walked is already covered by the trie findings
func checkBlocks(log *logger.L, reader storage.Reader, walked trie.Set, options Options, report *Report) error {

	rootBlocks := trie.NewSet()
	for _, b := range options.RootBlocks {
		rootBlocks.Add(b)
	}

	meter := progress.New(log, "blocks verified", options.ProgressInterval)
	defer meter.Done()

	blocks := storage.Pool.Blocks

	cursor := storage.NewCursor(reader, blocks)
	return cursor.Map(func(key []byte, value []byte) error {
		report.BlocksChecked += 1
		meter.Add(1)

		var hash digest.Digest
		if err := digest.FromBytes(&hash, key); nil != err {
			return report.add(Finding{
				Kind:   UndecodableRecord,
				Table:  blocks.Name(),
				Key:    digest.NewDigest(key),
				Detail: "invalid key length",
			})
		}

		block, err := record.DecodeBlock(value)
		if nil != err {
			return report.add(Finding{
				Kind:   UndecodableRecord,
				Table:  blocks.Name(),
				Key:    hash,
				Detail: err.Error(),
			})
		}

		if actual := digest.NewDigest(value); actual != hash {
			if err := report.add(Finding{
				Kind:   HashMismatch,
				Table:  blocks.Name(),
				Key:    hash,
				Actual: actual,
			}); nil != err {
				return err
			}
		}

		if !block.IsGenesis() && !rootBlocks.Has(hash) {
			found, err := reader.Has(blocks, block.Parent[:])
			if nil != err {
				return err
			}
			if !found {
				log.Warnf("block: %s  height: %d  missing parent: %s", hash, block.Height, block.Parent)
				if err := report.add(Finding{
					Kind:  MissingParent,
					Table: blocks.Name(),
					Key:   hash,
					Ref:   block.Parent,
				}); nil != err {
					return err
				}
			}
		}

		if !options.Sparsified && !walked.Has(block.StateRoot) {
			found, err := reader.Has(storage.Pool.TrieNodes, block.StateRoot[:])
			if nil != err {
				return err
			}
			if !found {
				if err := report.add(Finding{
					Kind:  MissingStateRoot,
					Table: blocks.Name(),
					Key:   hash,
					Ref:   block.StateRoot,
				}); nil != err {
					return err
				}
			}
		}

		return checkDeploys(reader, hash, report)
	})
}

// every deploy listed for a block must exist
func checkDeploys(reader storage.Reader, block digest.Digest, report *Report) error {
	value, err := reader.Get(storage.Pool.BlockDeploys, block[:])
	if nil != err {
		return err
	}
	if nil == value {
		return nil
	}

	list, err := record.DecodeDeployList(value)
	if nil != err {
		return report.add(Finding{
			Kind:   UndecodableRecord,
			Table:  storage.Pool.BlockDeploys.Name(),
			Key:    block,
			Detail: err.Error(),
		})
	}

	for _, d := range list {
		found, err := reader.Has(storage.Pool.Deploys, d[:])
		if nil != err {
			return err
		}
		if !found {
			if err := report.add(Finding{
				Kind:  MissingDeploy,
				Table: storage.Pool.BlockDeploys.Name(),
				Key:   block,
				Ref:   d,
			}); nil != err {
				return err
			}
		}
	}
	return nil
}
