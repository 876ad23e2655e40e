// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func TestBeginWriteShouldErrorWhenAlreadyInTransaction(t *testing.T) {
	env, _ := openTestEnvironment(t, 0)
	defer env.Close()

	trx, err := env.BeginWrite()
	require.Nil(t, err, "first time BeginWrite should not error")

	_, err = env.BeginWrite()
	assert.Equal(t, fault.ErrTransactionInUse, err, "second BeginWrite")

	trx.Abort()

	trx, err = env.BeginWrite()
	assert.Nil(t, err, "BeginWrite after abort")
	assert.Nil(t, trx.Commit(), "empty commit")

	assert.Equal(t, fault.ErrTransactionNotActive, trx.Commit(), "commit twice")
}

func TestWriteTransactionReadsItsOwnWrites(t *testing.T) {
	env, _ := openTestEnvironment(t, 0)
	defer env.Close()

	tb := storage.Pool.Deploys

	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(tb, []byte("k1"), []byte("v1"))
	require.Nil(t, trx.Commit(), "commit")

	trx, err = env.BeginWrite()
	require.Nil(t, err, "begin")
	defer trx.Abort()

	trx.Put(tb, []byte("k2"), []byte("v2"))
	trx.Delete(tb, []byte("k1"))

	v, err := trx.Get(tb, []byte("k2"))
	assert.Nil(t, err, "get pending put")
	assert.Equal(t, []byte("v2"), v, "pending put value")

	v, err = trx.Get(tb, []byte("k1"))
	assert.Nil(t, err, "get pending delete")
	assert.Nil(t, v, "pending delete hides committed value")

	found, err := trx.Has(tb, []byte("k1"))
	assert.Nil(t, err, "has")
	assert.False(t, found, "deleted key")

	assert.Equal(t, 2, trx.Len(), "batch records")
	assert.Equal(t, 1+2+2, trx.Bytes(), "put bytes")

	// other tables are distinct key spaces
	v, err = trx.Get(storage.Pool.Blocks, []byte("k2"))
	assert.Nil(t, err, "other table")
	assert.Nil(t, v, "other table does not see the key")
}

func TestAbortLeavesNoVisibleWrites(t *testing.T) {
	env, _ := openTestEnvironment(t, 0)
	defer env.Close()

	tb := storage.Pool.TrieNodes

	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(tb, []byte("k"), []byte("v"))
	trx.Abort()

	rd, err := env.BeginRead()
	require.Nil(t, err, "begin read")
	defer rd.Release()

	v, err := rd.Get(tb, []byte("k"))
	assert.Nil(t, err, "get")
	assert.Nil(t, v, "aborted write is invisible")
}

func TestReadTransactionIsASnapshot(t *testing.T) {
	env, _ := openTestEnvironment(t, 0)
	defer env.Close()

	tb := storage.Pool.Blocks

	rd, err := env.BeginRead()
	require.Nil(t, err, "begin read")
	defer rd.Release()

	// a reader does not block the writer
	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin write")
	trx.Put(tb, []byte("k"), []byte("v"))
	require.Nil(t, trx.Commit(), "commit")

	found, err := rd.Has(tb, []byte("k"))
	assert.Nil(t, err, "has")
	assert.False(t, found, "commit after snapshot is not visible")

	rd2, err := env.BeginRead()
	require.Nil(t, err, "second read")
	defer rd2.Release()

	v, err := rd2.Get(tb, []byte("k"))
	assert.Nil(t, err, "get")
	assert.Equal(t, []byte("v"), v, "new snapshot sees commit")
}

func TestCommitBeyondMaxSize(t *testing.T) {
	env, _ := openTestEnvironment(t, 100)
	defer env.Close()

	tb := storage.Pool.Deploys

	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(tb, []byte("small"), []byte("value"))
	require.Nil(t, trx.Commit(), "small commit fits")

	trx, err = env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(tb, []byte("large"), make([]byte, 200))
	assert.Equal(t, fault.ErrEnvironmentFull, trx.Commit(), "large commit")

	rd, err := env.BeginRead()
	require.Nil(t, err, "begin read")
	defer rd.Release()

	found, err := rd.Has(tb, []byte("large"))
	assert.Nil(t, err, "has")
	assert.False(t, found, "refused commit left no data")

	found, err = rd.Has(tb, []byte("small"))
	assert.Nil(t, err, "has")
	assert.True(t, found, "earlier commit still present")

	// the transaction was released
	trx, err = env.BeginWrite()
	assert.Nil(t, err, "begin after refused commit")
	trx.Abort()
}

func TestDeleteOnlyCommitBeyondMaxSize(t *testing.T) {
	env, path := openTestEnvironment(t, 0)

	tb := storage.Pool.TrieNodes
	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin")
	for i := 0; i < 10; i += 1 {
		trx.Put(tb, []byte{byte(i)}, make([]byte, 100))
	}
	require.Nil(t, trx.Commit(), "fill")
	require.Nil(t, env.Close(), "close")

	// reopening flushes the journal into tables that count towards the size
	env, err = storage.Open(path, storage.ReadWrite, 1)
	require.Nil(t, err, "reopen with a limit")
	defer env.Close()

	size, err := env.Size()
	require.Nil(t, err, "size")
	require.True(t, size > 1, "already over the limit: %d", size)

	trx, err = env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(tb, []byte("grow"), []byte("value"))
	assert.Equal(t, fault.ErrEnvironmentFull, trx.Commit(), "growth refused")

	trx, err = env.BeginWrite()
	require.Nil(t, err, "begin")
	for i := 0; i < 5; i += 1 {
		trx.Delete(tb, []byte{byte(i)})
	}
	require.Nil(t, trx.Commit(), "deletes always allowed")

	rd, err := env.BeginRead()
	require.Nil(t, err, "begin read")
	defer rd.Release()

	n, err := storage.Count(rd, tb)
	require.Nil(t, err, "count")
	assert.Equal(t, uint64(5), n, "deleted")
}

func TestCloseAbortsWriter(t *testing.T) {
	env, path := openTestEnvironment(t, 0)

	trx, err := env.BeginWrite()
	require.Nil(t, err, "begin")
	trx.Put(storage.Pool.Deploys, []byte("k"), []byte("v"))
	require.Nil(t, env.Close(), "close")

	_, err = env.BeginRead()
	assert.True(t, fault.IsErrIo(err), "closed environment")

	env, err = storage.Open(path, storage.ReadOnly, 0)
	require.Nil(t, err, "reopen")
	defer env.Close()

	rd, err := env.BeginRead()
	require.Nil(t, err, "begin read")
	defer rd.Release()

	found, err := rd.Has(storage.Pool.Deploys, []byte("k"))
	assert.Nil(t, err, "has")
	assert.False(t, found, "uncommitted write was dropped")
}
