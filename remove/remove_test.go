// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package remove_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/remove"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/verify"
)

func TestMain(m *testing.M) {
	dir := fixture.SetupTestLogger()
	rc := m.Run()
	fixture.TeardownTestLogger(dir)
	os.Exit(rc)
}

func trieCount(t *testing.T, env *storage.Environment) uint64 {
	n, err := storage.Count(fixture.Read(t, env), storage.Pool.TrieNodes)
	require.Nil(t, err, "count")
	return n
}

func TestRemoveBlockNotFound(t *testing.T) {
	c := fixture.NewChain(t)

	_, err := remove.RemoveBlock(c.Env, digest.NewDigest([]byte("absent")), remove.Options{})
	assert.True(t, errors.Is(err, fault.ErrBlockNotFound), "not found: %v", err)
	assert.True(t, fault.IsErrNotFound(err), "class")

	// the write transaction was released
	trx, err := c.Env.BeginWrite()
	require.Nil(t, err, "begin write")
	trx.Abort()
}

func TestRemoveBlockReferencedByChild(t *testing.T) {
	c := fixture.NewChain(t)

	result, err := remove.RemoveBlock(c.Env, c.Blocks[1], remove.Options{})
	assert.True(t, errors.Is(err, fault.ErrReferencedByChild), "referenced: %v", err)
	require.NotNil(t, result, "result names the children")
	assert.Equal(t, []digest.Digest{c.Blocks[2]}, result.Children, "children")
	assert.True(t, fixture.Has(t, c.Env, storage.Pool.Blocks, c.Blocks[1]), "block kept")
}

func TestRemoveBlockForced(t *testing.T) {
	c := fixture.NewChain(t)
	nodes := trieCount(t, c.Env)

	result, err := remove.RemoveBlock(c.Env, c.Blocks[1], remove.Options{Force: true})
	require.Nil(t, err, "forced remove")
	assert.Equal(t, uint64(1), result.Height, "height")
	assert.True(t, result.DeployList, "deploy list removed")

	assert.False(t, fixture.Has(t, c.Env, storage.Pool.Blocks, c.Blocks[1]), "block")
	assert.False(t, fixture.Has(t, c.Env, storage.Pool.BlockDeploys, c.Blocks[1]), "deploy list")
	assert.True(t, fixture.Has(t, c.Env, storage.Pool.Deploys, c.Deploys[1]), "deploy kept without purge")
	assert.Equal(t, nodes, trieCount(t, c.Env), "trie untouched")

	rd := fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, nil, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	require.Equal(t, 1, len(report.Findings), "findings: %v", report.Findings)
	assert.Equal(t, verify.MissingParent, report.Findings[0].Kind, "kind")
	assert.Equal(t, c.Blocks[2], report.Findings[0].Key, "child block")
	assert.Equal(t, c.Blocks[1], report.Findings[0].Ref, "removed parent")
}

func TestRemoveBlockReclaimable(t *testing.T) {
	c := fixture.NewChain(t)

	result, err := remove.RemoveBlock(c.Env, c.Blocks[2], remove.Options{Reclaimable: true})
	require.Nil(t, err, "remove tip")
	require.NotNil(t, result.StateRoot, "state root")
	assert.Equal(t, c.Roots[2], *result.StateRoot, "root")
	assert.False(t, result.StateRootRetained, "root only used by this block")
	assert.Equal(t, 2, result.Reclaimable, "root and its own leaf, shared subtree kept")

	result, err = remove.RemoveBlock(c.Env, c.Blocks[0], remove.Options{Force: true, Reclaimable: true})
	require.Nil(t, err, "remove genesis")
	assert.Equal(t, len(c.OnlyR0), result.Reclaimable, "nothing of R0 is shared")

	result, err = remove.RemoveBlock(c.Env, c.Blocks[1], remove.Options{})
	require.Nil(t, err, "remove last")
	assert.Nil(t, result.StateRoot, "not requested")
	assert.Equal(t, 0, result.Reclaimable, "not counted")
}

func TestRemoveBlockPurgeDeploys(t *testing.T) {
	env := fixture.NewEnvironment(t)

	shared := fixture.Deploy("shared")
	only := fixture.Deploy("only")
	sharedHash, _ := shared.Hash()
	onlyHash, _ := only.Hash()

	trx := fixture.Begin(t, env)
	root := fixture.PutNode(trx, fixture.Leaf("k", "v"))
	b0 := fixture.PutBlock(t, trx, &record.Block{
		Version:   record.BlockVersion1,
		StateRoot: root,
	}, shared)
	b1 := fixture.PutBlock(t, trx, &record.Block{
		Version:   record.BlockVersion1,
		Height:    1,
		Parent:    b0,
		StateRoot: root,
	}, shared, only)
	fixture.Commit(t, trx)

	result, err := remove.RemoveBlock(env, b1, remove.Options{PurgeDeploys: true})
	require.Nil(t, err, "remove")
	assert.Equal(t, 1, result.DeploysPurged, "purged")
	assert.Equal(t, 1, result.DeploysShared, "shared")

	assert.False(t, fixture.Has(t, env, storage.Pool.Deploys, onlyHash), "unique deploy purged")
	assert.True(t, fixture.Has(t, env, storage.Pool.Deploys, sharedHash), "shared deploy kept")
	assert.True(t, fixture.Has(t, env, storage.Pool.Blocks, b0), "parent kept")
	assert.True(t, fixture.Has(t, env, storage.Pool.TrieNodes, root), "state kept")
}

func TestRemoveBlockReadOnly(t *testing.T) {
	c := fixture.NewChain(t)
	path := c.Env.Path()
	require.Nil(t, c.Env.Close(), "close")

	env, err := storage.Open(path, storage.ReadOnly, 0)
	require.Nil(t, err, "open read only")
	defer env.Close()

	_, err = remove.RemoveBlock(env, c.Blocks[2], remove.Options{})
	assert.Equal(t, fault.ErrReadOnly, err, "read only")
}
