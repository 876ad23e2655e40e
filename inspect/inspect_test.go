// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package inspect_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/inspect"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func TestMain(m *testing.M) {
	dir := fixture.SetupTestLogger()
	rc := m.Run()
	fixture.TeardownTestLogger(dir)
	os.Exit(rc)
}

func TestLatestBlock(t *testing.T) {
	c := fixture.NewChain(t)

	trx := fixture.Begin(t, c.Env)
	garbage := []byte("not a block")
	trx.Put(storage.Pool.Blocks, garbage, []byte{0xff})
	fixture.Commit(t, trx)

	info, err := inspect.LatestBlock(fixture.Read(t, c.Env))
	require.Nil(t, err, "latest block")
	assert.Equal(t, c.Blocks[2], info.Hash, "hash")
	assert.Equal(t, uint64(2), info.Block.Height, "height")
	assert.Equal(t, c.Roots[2], info.Block.StateRoot, "state root")

	buffer, err := json.Marshal(info)
	require.Nil(t, err, "json")
	assert.Contains(t, string(buffer), `"hash":"`+c.Blocks[2].String()+`"`, "hash as hex")
}

func TestLatestBlockEmpty(t *testing.T) {
	env := fixture.NewEnvironment(t)

	_, err := inspect.LatestBlock(fixture.Read(t, env))
	assert.True(t, errors.Is(err, fault.ErrBlockNotFound), "empty: %v", err)
}

func TestSummary(t *testing.T) {
	c := fixture.NewChain(t)

	summary, err := inspect.Summary(fixture.Read(t, c.Env))
	require.Nil(t, err, "summary")

	entries := map[string]uint64{}
	for _, s := range summary {
		entries[s.Name] = s.Entries
	}
	assert.Equal(t, map[string]uint64{
		"blocks":        3,
		"block_deploys": 3,
		"deploys":       3,
		"trie":          9,
	}, entries, "entries")
}

func TestNetworkName(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "testnet", "data")

	name, err := inspect.NetworkName(path)
	require.Nil(t, err, "network name")
	assert.Equal(t, "testnet", name, "parent directory")

	name, err = inspect.NetworkName(filepath.Join(path, ".."))
	require.Nil(t, err, "relative")
	assert.Equal(t, filepath.Base(root), name, "parent of parent")

	_, err = inspect.NetworkName("/")
	assert.True(t, fault.IsErrInvalid(err), "root has no network: %v", err)
}

func TestCompare(t *testing.T) {
	c := fixture.NewChain(t)
	src := fixture.Read(t, c.Env)

	env := fixture.NewEnvironment(t)
	trx := fixture.Begin(t, env)
	for _, table := range storage.Tables() {
		elements, err := storage.NewCursor(src, table).Fetch(100)
		require.Nil(t, err, "fetch: %s", table)
		for _, e := range elements {
			trx.Put(table, e.Key, e.Value)
		}
	}
	fixture.Commit(t, trx)

	results, err := inspect.Compare(src, fixture.Read(t, env), nil)
	require.Nil(t, err, "identical")
	for _, r := range results {
		assert.True(t, r.Equal(), "table: %s", r.Name)
	}

	trx = fixture.Begin(t, env)
	trx.Delete(storage.Pool.TrieNodes, c.Shared[:])
	trx.Put(storage.Pool.Deploys, c.Deploys[0][:], []byte("altered"))
	trx.Put(storage.Pool.Blocks, []byte("extra"), []byte{0x01})
	fixture.Commit(t, trx)

	results, err = inspect.Compare(src, fixture.Read(t, env), nil)
	require.Nil(t, err, "compare")
	require.Equal(t, len(storage.Tables()), len(results), "every table")

	byName := map[string]*inspect.TableComparison{}
	for _, r := range results {
		byName[r.Name] = r
	}

	trie := byName[storage.Pool.TrieNodes.Name()]
	assert.Equal(t, uint64(9), trie.Records, "trie records")
	assert.Equal(t, uint64(1), trie.Missing, "trie missing")
	assert.Equal(t, []string{c.Shared.String()}, trie.Keys, "trie keys")

	deploys := byName[storage.Pool.Deploys.Name()]
	assert.Equal(t, uint64(1), deploys.Different, "deploy altered")

	blocks := byName[storage.Pool.Blocks.Name()]
	assert.Equal(t, uint64(1), blocks.Extra, "extra block")
	assert.False(t, blocks.Equal(), "blocks differ")

	assert.True(t, byName[storage.Pool.BlockDeploys.Name()].Equal(), "block deploys")
}
