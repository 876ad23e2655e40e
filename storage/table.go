// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// Table - a prefix selected key range of an environment
type Table struct {
	name   string
	prefix byte
	limit  []byte
}

// Element - a binary data item
type Element struct {
	Key   []byte
	Value []byte
}

// Name - the table name used on the command line
func (t *Table) Name() string {
	return t.name
}

// Prefix - the key prefix byte
func (t *Table) Prefix() byte {
	return t.prefix
}

func (t *Table) String() string {
	return t.name
}

// prepend the prefix onto the key
func (t *Table) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = t.prefix
	return append(prefixedKey, key...)
}

// the whole table
func (t *Table) keyRange() ldb_util.Range {
	return ldb_util.Range{
		Start: []byte{t.prefix}, // Start of key range, included in the range
		Limit: t.limit,          // Limit of key range, excluded from the range
	}
}

// Tables - all tables in declaration order
func Tables() []*Table {
	list := make([]*Table, len(tableList))
	copy(list, tableList)
	return list
}

// TableByName - locate a table from its name or its prefix character
func TableByName(name string) (*Table, error) {
	for _, t := range tableList {
		if name == t.name || (1 == len(name) && name[0] == t.prefix) {
			return t, nil
		}
	}
	return nil, fault.ErrUnknownTable
}
