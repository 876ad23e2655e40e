// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// maintain the on-disk data store of a node
//
// An environment is a single LevelDB directory split into a series
// of tables.  Each table is defined by a prefix byte that is obtained
// from the prefix tag in the struct defining the available tables.
//
// Notes:
// 1. each separate table has a single byte prefix
// 2. ++           = concatenation of byte data
// 3. hash         = 32 byte BLAKE2b-256(packed record)
// 4. version      = 0x00 ++ "VERSION", 4 byte big endian layout version
//
// Blocks:
//
//   B ++ block hash            - block store
//                                data: packed block record
//   I ++ block hash            - deploys contained in the block
//                                data: count(varint) ++ [ deploy hash ]
//
// Deploys:
//
//   D ++ deploy hash           - deploy store
//                                data: packed deploy record
//
// Global state:
//
//   T ++ node hash             - trie node store, invariant: hash = BLAKE2b-256(data)
//                                data: packed trie node
//
// Transactions:
//
// Readers work on a snapshot and never block.  Only one write
// transaction is active per environment at any time; its writes are
// buffered in a batch and become visible together, durably, on Commit.
package storage
