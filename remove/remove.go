// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package remove

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/trie"
	"github.com/bitmark-inc/logger"
)

// Options - what else to remove with the block
type Options struct {
	PurgeDeploys bool // delete deploys no other block lists
	Force        bool // remove even if a child block names it as parent
	Reclaimable  bool // count trie nodes only this block's state reaches
}

// Result - what was removed
type Result struct {
	Block         digest.Digest   `json:"block"`
	Height        uint64          `json:"height"`
	Children      []digest.Digest `json:"children,omitempty"`
	DeployList    bool            `json:"deployList"`
	DeploysPurged int             `json:"deploysPurged"`
	DeploysShared int             `json:"deploysShared"`

	// only set when reclaimable state is requested
	StateRoot         *digest.Digest `json:"stateRoot,omitempty"`
	StateRootRetained bool           `json:"stateRootRetained,omitempty"`
	Reclaimable       int            `json:"reclaimable,omitempty"`
}

// RemoveBlock - delete a block record and its deploy list in one transaction
//
// the trie is never modified; a sparsify pass reclaims any state that
// only this block referenced
func RemoveBlock(env *storage.Environment, blockHash digest.Digest, options Options) (*Result, error) {
	log := logger.New("remove")

	trx, err := env.BeginWrite()
	if nil != err {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			trx.Abort()
		}
	}()

	blocks := storage.Pool.Blocks
	blockDeploys := storage.Pool.BlockDeploys

	packed, err := trx.Get(blocks, blockHash[:])
	if nil != err {
		return nil, err
	}
	if nil == packed {
		return nil, fmt.Errorf("%w: %s", fault.ErrBlockNotFound, blockHash)
	}

	result := &Result{
		Block: blockHash,
	}

	// an undecodable block can still be removed
	block, err := record.DecodeBlock(packed)
	if nil != err {
		log.Warnf("block: %s  undecodable: %s", blockHash, err)
	} else {
		result.Height = block.Height
	}

	if nil != block && options.Reclaimable {
		retained, reclaimable, err := reclaimableState(trx, blockHash, block.StateRoot)
		if nil != err {
			return nil, err
		}
		root := block.StateRoot
		result.StateRoot = &root
		result.StateRootRetained = retained
		result.Reclaimable = reclaimable
		log.Infof("block: %s  state root: %s  retained: %t  reclaimable nodes: %d", blockHash, root, retained, reclaimable)
	}

	children, err := childrenOf(trx, blockHash)
	if nil != err {
		return nil, err
	}
	result.Children = children
	if len(children) > 0 {
		if !options.Force {
			log.Errorf("block: %s  referenced by: %d children", blockHash, len(children))
			return result, fmt.Errorf("%w: %s  child: %s", fault.ErrReferencedByChild, blockHash, children[0])
		}
		log.Warnf("block: %s  forced removal with: %d children", blockHash, len(children))
	}

	list, err := trx.Get(blockDeploys, blockHash[:])
	if nil != err {
		return nil, err
	}
	if nil != list {
		result.DeployList = true

		if options.PurgeDeploys {
			deploys, err := record.DecodeDeployList(list)
			if nil != err {
				return nil, fmt.Errorf("deploy list: %s: %w", blockHash, err)
			}
			shared, err := sharedDeploys(trx, blockHash)
			if nil != err {
				return nil, err
			}
			for _, d := range deploys {
				if shared.Has(d) {
					result.DeploysShared += 1
					continue
				}
				trx.Delete(storage.Pool.Deploys, d[:])
				result.DeploysPurged += 1
			}
		}
		trx.Delete(blockDeploys, blockHash[:])
	}
	trx.Delete(blocks, blockHash[:])

	committed = true
	if err := trx.Commit(); nil != err {
		return nil, err
	}

	log.Infof("removed block: %s  height: %d  deploys purged: %d  shared: %d", blockHash, result.Height, result.DeploysPurged, result.DeploysShared)
	return result, nil
}

// blocks that name this block as their parent
func childrenOf(reader storage.Reader, parent digest.Digest) ([]digest.Digest, error) {
	log := logger.New("remove")

	children := []digest.Digest{}
	err := storage.NewCursor(reader, storage.Pool.Blocks).Map(func(key []byte, value []byte) error {
		block, err := record.DecodeBlock(value)
		if nil != err {
			log.Warnf("skip undecodable block: %x: %s", key, err)
			return nil
		}
		if block.Parent == parent {
			var hash digest.Digest
			if err := digest.FromBytes(&hash, key); nil != err {
				return err
			}
			children = append(children, hash)
		}
		return nil
	})
	return children, err
}

// mark the state of every other block, then count the nodes of root
// left unmarked: a later sparsify would delete exactly those
func reclaimableState(reader storage.Reader, excluded digest.Digest, root digest.Digest) (bool, int, error) {
	log := logger.New("remove")

	w := trie.New(reader)
	w.Missing = func(parent digest.Digest, hash digest.Digest) error {
		log.Debugf("missing node: %s  parent: %s", hash, parent)
		return nil
	}
	w.Invalid = func(hash digest.Digest, value []byte, err error) error {
		log.Warnf("undecodable node: %s: %s", hash, err)
		return nil
	}

	err := storage.NewCursor(reader, storage.Pool.Blocks).Map(func(key []byte, value []byte) error {
		if string(key) == string(excluded[:]) {
			return nil
		}
		block, err := record.DecodeBlock(value)
		if nil != err {
			log.Warnf("skip undecodable block: %x: %s", key, err)
			return nil
		}
		return w.Walk(block.StateRoot, nil)
	})
	if nil != err {
		return false, 0, err
	}

	retained := w.Visited().Has(root)

	reclaimable := 0
	err = w.Walk(root, func(digest.Digest, []byte, record.Node) error {
		reclaimable += 1
		return nil
	})
	return retained, reclaimable, err
}

// deploys listed by any block other than the excluded one
func sharedDeploys(reader storage.Reader, excluded digest.Digest) (trie.Set, error) {
	shared := trie.NewSet()
	err := storage.NewCursor(reader, storage.Pool.BlockDeploys).Map(func(key []byte, value []byte) error {
		if string(key) == string(excluded[:]) {
			return nil
		}
		list, err := record.DecodeDeployList(value)
		if nil != err {
			return fmt.Errorf("deploy list: %x: %w", key, err)
		}
		for _, d := range list {
			shared.Add(d)
		}
		return nil
	})
	return shared, err
}
