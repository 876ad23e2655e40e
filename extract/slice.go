// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract

import (
	"fmt"
	"os"

	"github.com/bitmark-inc/bitmark-dbutils/compact"
	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// SliceResult - what went into a slice
type SliceResult struct {
	Block     *digest.Digest            `json:"block,omitempty"`
	Height    uint64                    `json:"height"`
	StateRoot digest.Digest             `json:"stateRoot"`
	Deploys   int                       `json:"deploys"`
	Trie      *compact.UnsparsifyResult `json:"trie"`
}

// ExtractSlice - a new environment holding one block and the state below its root
//
// the block, its deploy list and its deploys are written in a single
// transaction before the trie is copied
func ExtractSlice(source *storage.Environment, blockHash digest.Digest, destPath string, options Options) (*SliceResult, error) {
	log := logger.New("slice")

	rd, err := source.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	packed, err := rd.Get(storage.Pool.Blocks, blockHash[:])
	if nil != err {
		return nil, err
	}
	if nil == packed {
		return nil, fmt.Errorf("%w: %s", fault.ErrBlockNotFound, blockHash)
	}
	block, err := record.DecodeBlock(packed)
	if nil != err {
		return nil, fmt.Errorf("block: %s: %w", blockHash, err)
	}

	dest, err := createSlice(source, destPath, options)
	if nil != err {
		return nil, err
	}
	defer dest.Close()

	result := &SliceResult{
		Block:     &blockHash,
		Height:    block.Height,
		StateRoot: block.StateRoot,
	}

	trx, err := dest.BeginWrite()
	if nil != err {
		return nil, err
	}
	trx.Put(storage.Pool.Blocks, blockHash[:], packed)

	list, err := rd.Get(storage.Pool.BlockDeploys, blockHash[:])
	if nil != err {
		trx.Abort()
		return nil, err
	}
	if nil != list {
		deploys, err := record.DecodeDeployList(list)
		if nil != err {
			trx.Abort()
			return nil, fmt.Errorf("deploy list: %s: %w", blockHash, err)
		}
		trx.Put(storage.Pool.BlockDeploys, blockHash[:], list)

		for _, d := range deploys {
			value, err := rd.Get(storage.Pool.Deploys, d[:])
			if nil != err {
				trx.Abort()
				return nil, err
			}
			if nil == value {
				trx.Abort()
				return nil, fmt.Errorf("%w: deploy: %s  block: %s", fault.ErrNotFound, d, blockHash)
			}
			trx.Put(storage.Pool.Deploys, d[:], value)
		}
		result.Deploys = len(deploys)
	}

	if err := trx.Commit(); nil != err {
		return nil, err
	}

	log.Infof("block: %s  height: %d  deploys: %d", blockHash, block.Height, result.Deploys)

	result.Trie, err = compact.Unsparsify(dest, rd, []digest.Digest{block.StateRoot}, trieOptions(options))
	return result, err
}

// ExtractState - a new environment holding only the state below one root
func ExtractState(source *storage.Environment, stateRoot digest.Digest, destPath string, options Options) (*SliceResult, error) {
	rd, err := source.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	found, err := rd.Has(storage.Pool.TrieNodes, stateRoot[:])
	if nil != err {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: state root: %s", fault.ErrMissingNode, stateRoot)
	}

	dest, err := createSlice(source, destPath, options)
	if nil != err {
		return nil, err
	}
	defer dest.Close()

	result := &SliceResult{
		StateRoot: stateRoot,
	}
	result.Trie, err = compact.Unsparsify(dest, rd, []digest.Digest{stateRoot}, trieOptions(options))
	return result, err
}

// a slice always goes into a new environment
func createSlice(source *storage.Environment, destPath string, options Options) (*storage.Environment, error) {
	if _, _, err := options.bounds(); nil != err {
		return nil, err
	}

	same, err := storage.SamePath(source.Path(), destPath)
	if nil != err {
		return nil, err
	}
	if same {
		return nil, fault.ErrSameEnvironment
	}

	_, err = os.Stat(destPath)
	if nil == err {
		return nil, fmt.Errorf("%w: %s", fault.ErrDestinationExists, destPath)
	} else if !os.IsNotExist(err) {
		return nil, fault.NewIoError(destPath, err)
	}

	return storage.Open(destPath, storage.ReadWrite, options.MaxSize)
}

func trieOptions(options Options) compact.Options {
	return compact.Options{
		BatchSize:        options.BatchRecords,
		BatchBytes:       options.BatchBytes,
		ProgressInterval: options.ProgressInterval,
		Shutdown:         options.Shutdown,
	}
}
