// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package inspect

import (
	"fmt"
	"path/filepath"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// BlockInfo - a block with its hash
type BlockInfo struct {
	Network string        `json:"network,omitempty"`
	Hash    digest.Digest `json:"hash"`
	Block   *record.Block `json:"block"`
}

// TableSummary - entry count of one table
type TableSummary struct {
	Name    string `json:"name"`
	Prefix  string `json:"prefix"`
	Entries uint64 `json:"entries"`
}

// LatestBlock - the block of greatest height
//
// undecodable blocks are skipped; of several blocks at the same
// height the one with the lowest hash is returned
func LatestBlock(reader storage.Reader) (*BlockInfo, error) {
	log := logger.New("inspect")

	var latest *BlockInfo
	err := storage.NewCursor(reader, storage.Pool.Blocks).Map(func(key []byte, value []byte) error {
		block, err := record.DecodeBlock(value)
		if nil != err {
			log.Warnf("skip undecodable block: %x: %s", key, err)
			return nil
		}
		if nil != latest && block.Height <= latest.Block.Height {
			return nil
		}
		info := &BlockInfo{Block: block}
		if err := digest.FromBytes(&info.Hash, key); nil != err {
			log.Warnf("skip block key: %x: %s", key, err)
			return nil
		}
		latest = info
		return nil
	})
	if nil != err {
		return nil, err
	}
	if nil == latest {
		return nil, fault.ErrBlockNotFound
	}
	return latest, nil
}

// Summary - entry counts of every table
func Summary(reader storage.Reader) ([]TableSummary, error) {
	tables := storage.Tables()
	summary := make([]TableSummary, 0, len(tables))
	for _, table := range tables {
		n, err := storage.Count(reader, table)
		if nil != err {
			return nil, fmt.Errorf("table: %s: %w", table, err)
		}
		summary = append(summary, TableSummary{
			Name:    table.Name(),
			Prefix:  string([]byte{table.Prefix()}),
			Entries: n,
		})
	}
	return summary, nil
}

// NetworkName - the directory holding an environment names its network
func NetworkName(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if nil != err {
		return "", fault.NewIoError(path, err)
	}
	parent := filepath.Base(filepath.Dir(abs))
	if "/" == parent || "." == parent || string(filepath.Separator) == parent {
		return "", fmt.Errorf("%w: no network directory: %s", fault.ErrInvalidEnvironment, path)
	}
	return parent, nil
}
