// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package compact

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/trie"
)

// RetainedRoots - the distinct state roots of blocks at or above minHeight
//
// the result is sorted in key order
func RetainedRoots(reader storage.Reader, minHeight uint64) ([]digest.Digest, error) {
	roots := trie.NewSet()

	err := storage.NewCursor(reader, storage.Pool.Blocks).Map(func(key []byte, value []byte) error {
		block, err := record.DecodeBlock(value)
		if nil != err {
			return fmt.Errorf("block: %x: %w", key, err)
		}
		if block.Height >= minHeight {
			roots.Add(block.StateRoot)
		}
		return nil
	})
	if nil != err {
		return nil, err
	}

	return roots.Keys(), nil
}
