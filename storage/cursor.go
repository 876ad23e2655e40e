// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb/iterator"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// Cursor - key ordered access to a table
type Cursor struct {
	reader Reader
	table  *Table
	start  []byte
}

// NewCursor - initialise a cursor to the start of a table
func NewCursor(reader Reader, table *Table) *Cursor {
	return &Cursor{
		reader: reader,
		table:  table,
		start:  nil,
	}
}

// Seek - move cursor to a specific key position, the key itself is included
func (cursor *Cursor) Seek(key []byte) *Cursor {
	cursor.start = append([]byte{}, key...)
	return cursor
}

// SeekAfter - move cursor to the position just beyond a key
func (cursor *Cursor) SeekAfter(key []byte) *Cursor {
	cursor.start = after(key)
	return cursor
}

// Fetch - return up to count elements and advance the cursor beyond them
func (cursor *Cursor) Fetch(count int) ([]Element, error) {
	if nil == cursor {
		return nil, fault.ErrInvalidCursor
	}
	if count <= 0 {
		return nil, fault.ErrInvalidCount
	}

	iter := cursor.reader.Iterator(cursor.table, cursor.start)

	results := make([]Element, 0, count)
iterating:
	for iter.Next() {
		results = append(results, element(iter))
		if len(results) >= count {
			break iterating
		}
	}
	iter.Release()
	err := iter.Error()

	if n := len(results); n > 0 {
		cursor.start = after(results[n-1].Key)
	}
	return results, err
}

// Map - run a function on all remaining elements, stopping on the first error
func (cursor *Cursor) Map(f func(key []byte, value []byte) error) error {
	if nil == cursor {
		return fault.ErrInvalidCursor
	}

	iter := cursor.reader.Iterator(cursor.table, cursor.start)

	var err error
iterating:
	for iter.Next() {
		e := element(iter)
		err = f(e.Key, e.Value)
		if nil != err {
			break iterating
		}
		cursor.start = after(e.Key)
	}
	iter.Release()
	if nil == err {
		err = iter.Error()
	}
	return err
}

// Last - the highest keyed element of a table, nil if the table is empty
func Last(reader Reader, table *Table) (*Element, error) {
	iter := reader.Iterator(table, nil)
	defer iter.Release()

	if !iter.Last() {
		return nil, iter.Error()
	}
	e := element(iter)
	return &e, iter.Error()
}

// Count - number of entries in a table
func Count(reader Reader, table *Table) (uint64, error) {
	iter := reader.Iterator(table, nil)
	n := uint64(0)
	for iter.Next() {
		n += 1
	}
	iter.Release()
	return n, iter.Error()
}

// copy out the current iterator item with the prefix stripped
//
// contents of the iterator slices must not be modified, and are
// only valid until the next call to Next
func element(iter iterator.Iterator) Element {
	key := iter.Key()
	value := iter.Value()

	dataKey := make([]byte, len(key)-1) // strip the prefix
	copy(dataKey, key[1:])              // ...

	dataValue := make([]byte, len(value))
	copy(dataValue, value)

	return Element{
		Key:   dataKey,
		Value: dataValue,
	}
}

// the smallest key strictly greater than key
func after(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
