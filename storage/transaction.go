// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// Reader - read access common to both kinds of transaction
//
// Get returns nil, nil when the key is absent
type Reader interface {
	Get(table *Table, key []byte) ([]byte, error)
	Has(table *Table, key []byte) (bool, error)
	Iterator(table *Table, start []byte) iterator.Iterator
}

// ReadTransaction - a consistent snapshot of an environment
type ReadTransaction struct {
	path     string
	snapshot *leveldb.Snapshot
}

// WriteTransaction - buffered writes applied atomically on Commit
type WriteTransaction struct {
	env   *Environment
	batch *leveldb.Batch
	cache Cache
	bytes int
}

// BeginRead - start a snapshot isolated read transaction
//
// never blocks on a writer; call Release when finished
func (e *Environment) BeginRead() (*ReadTransaction, error) {
	e.Lock()
	defer e.Unlock()

	if nil == e.db {
		return nil, fault.NewIoError(e.path, leveldb.ErrClosed)
	}

	snapshot, err := e.db.GetSnapshot()
	if nil != err {
		return nil, mapError(e.path, err)
	}
	return &ReadTransaction{
		path:     e.path,
		snapshot: snapshot,
	}, nil
}

// Release - finish with the snapshot
func (r *ReadTransaction) Release() {
	r.snapshot.Release()
}

// Get - fetch a value, nil if the key is absent
func (r *ReadTransaction) Get(table *Table, key []byte) ([]byte, error) {
	value, err := r.snapshot.Get(table.prefixKey(key), nil)
	if leveldb.ErrNotFound == err {
		return nil, nil
	} else if nil != err {
		return nil, mapError(r.path, err)
	}
	if nil == value {
		value = []byte{}
	}
	return value, nil
}

// Has - check if a key exists
func (r *ReadTransaction) Has(table *Table, key []byte) (bool, error) {
	found, err := r.snapshot.Has(table.prefixKey(key), nil)
	return found, mapError(r.path, err)
}

// Iterator - iterate a table from start (inclusive) in key order
//
// keys returned by the iterator still carry the table prefix
func (r *ReadTransaction) Iterator(table *Table, start []byte) iterator.Iterator {
	return r.snapshot.NewIterator(rangeFrom(table, start), nil)
}

// BeginWrite - start the single write transaction of this environment
//
// fails immediately if another write transaction is active
func (e *Environment) BeginWrite() (*WriteTransaction, error) {
	e.Lock()
	defer e.Unlock()

	if nil == e.db {
		return nil, fault.NewIoError(e.path, leveldb.ErrClosed)
	}
	if e.readOnly {
		return nil, fault.ErrReadOnly
	}
	if nil != e.writer {
		return nil, fault.ErrTransactionInUse
	}

	e.writer = &WriteTransaction{
		env:   e,
		batch: new(leveldb.Batch),
		cache: newCache(),
	}
	return e.writer, nil
}

// Put - buffer a key/value pair
func (w *WriteTransaction) Put(table *Table, key []byte, value []byte) {
	k := table.prefixKey(key)
	w.cache.Set(dbPut, string(k), value)
	w.batch.Put(k, value)
	w.bytes += len(k) + len(value)
}

// Delete - buffer a delete
func (w *WriteTransaction) Delete(table *Table, key []byte) {
	k := table.prefixKey(key)
	w.cache.Set(dbDelete, string(k), nil)
	w.batch.Delete(k)
}

// Get - fetch a value, seeing this transaction's own writes first
func (w *WriteTransaction) Get(table *Table, key []byte) ([]byte, error) {
	k := table.prefixKey(key)
	value, deleted, found := w.cache.Get(string(k))
	if deleted {
		return nil, nil
	}
	if found {
		return value, nil
	}

	value, err := w.env.db.Get(k, nil)
	if leveldb.ErrNotFound == err {
		return nil, nil
	} else if nil != err {
		return nil, mapError(w.env.path, err)
	}
	if nil == value {
		value = []byte{}
	}
	return value, nil
}

// Has - check if a key exists, seeing this transaction's own writes first
func (w *WriteTransaction) Has(table *Table, key []byte) (bool, error) {
	k := table.prefixKey(key)
	_, deleted, found := w.cache.Get(string(k))
	if deleted {
		return false, nil
	}
	if found {
		return true, nil
	}
	found, err := w.env.db.Has(k, nil)
	return found, mapError(w.env.path, err)
}

// Iterator - iterate committed data of a table from start (inclusive)
//
// buffered writes are not visible to the iterator
func (w *WriteTransaction) Iterator(table *Table, start []byte) iterator.Iterator {
	return w.env.db.NewIterator(rangeFrom(table, start), nil)
}

// Len - number of buffered puts and deletes
func (w *WriteTransaction) Len() int {
	return w.batch.Len()
}

// Bytes - total size of buffered puts
func (w *WriteTransaction) Bytes() int {
	return w.bytes
}

// Commit - durably apply all buffered writes, or none of them
//
// the transaction is finished whatever the result
func (w *WriteTransaction) Commit() error {
	e := w.env
	e.Lock()
	defer e.Unlock()

	if e.writer != w {
		return fault.ErrTransactionNotActive
	}
	defer w.release()

	if 0 == w.batch.Len() {
		return nil
	}

	// only puts grow the environment, deletes are always allowed
	if e.maxSize > 0 && w.bytes > 0 {
		size, err := e.Size()
		if nil != err {
			return err
		}
		if size+uint64(w.bytes) > e.maxSize {
			e.log.Errorf("commit: size: %d + %d exceeds limit: %d", size, w.bytes, e.maxSize)
			return fault.ErrEnvironmentFull
		}
	}

	err := e.db.Write(w.batch, &ldb_opt.WriteOptions{Sync: true})
	if nil != err {
		e.log.Errorf("commit: %d records  error: %s", w.batch.Len(), err)
		return mapError(e.path, err)
	}
	e.log.Debugf("commit: %d records  %d bytes", w.batch.Len(), w.bytes)
	return nil
}

// Abort - discard all buffered writes
func (w *WriteTransaction) Abort() {
	e := w.env
	e.Lock()
	defer e.Unlock()

	if e.writer == w {
		w.release()
	}
}

// environment lock must be held
func (w *WriteTransaction) release() {
	w.batch.Reset()
	w.cache.Clear()
	w.bytes = 0
	w.env.writer = nil
}

func rangeFrom(table *Table, start []byte) *ldb_util.Range {
	r := table.keyRange()
	if len(start) > 0 {
		r.Start = table.prefixKey(start)
	}
	return &r
}
