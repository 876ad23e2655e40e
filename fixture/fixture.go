// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fixture - environments with known content for package tests
package fixture

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// SetupTestLogger - file only logging into a temporary directory
func SetupTestLogger() string {
	dir, err := ioutil.TempDir("", "dbutils-log")
	if nil != err {
		panic(err)
	}

	logging := logger.Configuration{
		Directory: dir,
		File:      "testing.log",
		Size:      1048576,
		Count:     10,
		Console:   false,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	_ = logger.Initialise(logging)
	return dir
}

// TeardownTestLogger - stop logging and remove the log files
func TeardownTestLogger(dir string) {
	logger.Finalise()
	_ = os.RemoveAll(dir)
}

// NewEnvironment - a new read-write environment in a test temporary directory
func NewEnvironment(t testing.TB) *storage.Environment {
	path := filepath.Join(t.TempDir(), "env")
	env, err := storage.Open(path, storage.ReadWrite, 0)
	if nil != err {
		t.Fatalf("open: %q  error: %s", path, err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

// Begin - start a write transaction or fail the test
func Begin(t testing.TB, env *storage.Environment) *storage.WriteTransaction {
	trx, err := env.BeginWrite()
	if nil != err {
		t.Fatalf("begin write error: %s", err)
	}
	return trx
}

// Commit - commit or fail the test
func Commit(t testing.TB, trx *storage.WriteTransaction) {
	if err := trx.Commit(); nil != err {
		t.Fatalf("commit error: %s", err)
	}
}

// Read - a snapshot released at the end of the test
func Read(t testing.TB, env *storage.Environment) *storage.ReadTransaction {
	rd, err := env.BeginRead()
	if nil != err {
		t.Fatalf("begin read error: %s", err)
	}
	t.Cleanup(rd.Release)
	return rd
}

// PutNode - store a trie node under its hash
func PutNode(trx *storage.WriteTransaction, node record.Node) digest.Digest {
	packed := node.Pack()
	hash := record.HashOf(packed)
	trx.Put(storage.Pool.TrieNodes, hash[:], packed)
	return hash
}

// Leaf - a leaf node from strings
func Leaf(key string, value string) *record.Leaf {
	return &record.Leaf{Key: []byte(key), Value: []byte(value)}
}

// Branch - a branch whose children take indexes 0, 1, 2...
func Branch(children ...digest.Digest) *record.Branch {
	entries := make([]record.BranchEntry, len(children))
	for i, c := range children {
		entries[i] = record.BranchEntry{Index: byte(i), Child: c}
	}
	return record.NewBranch(entries...)
}

// PutBlock - store a block, its deploy list and its deploys
func PutBlock(t testing.TB, trx *storage.WriteTransaction, block *record.Block, deploys ...*record.Deploy) digest.Digest {
	packed, err := block.Pack()
	if nil != err {
		t.Fatalf("pack block error: %s", err)
	}
	hash := digest.NewDigest(packed)
	trx.Put(storage.Pool.Blocks, hash[:], packed)

	list := make(record.DeployList, 0, len(deploys))
	for _, d := range deploys {
		p, err := d.Pack()
		if nil != err {
			t.Fatalf("pack deploy error: %s", err)
		}
		h := digest.NewDigest(p)
		trx.Put(storage.Pool.Deploys, h[:], p)
		list = append(list, h)
	}
	trx.Put(storage.Pool.BlockDeploys, hash[:], list.Pack())
	return hash
}

// Deploy - a deploy with a string payload
func Deploy(payload string) *record.Deploy {
	return &record.Deploy{Version: record.DeployVersion, Payload: []byte(payload)}
}

// Chain - three blocks B0 <- B1 <- B2 with state roots R0, R1, R2
//
// R1 and R2 share the subtree under X; R0 shares nothing
//
//   R0 = branch(La, Lb)
//   R1 = branch(X, Ld)      X = extension(Lc)
//   R2 = branch(X, Le)
type Chain struct {
	Env     *storage.Environment
	Blocks  [3]digest.Digest
	Roots   [3]digest.Digest
	Deploys [3]digest.Digest
	Shared  digest.Digest

	// nodes reachable only from R0
	OnlyR0 []digest.Digest

	// nodes reachable from R1 or R2
	Retained []digest.Digest
}

// NewChain - build the three block chain in a new environment
func NewChain(t testing.TB) *Chain {
	env := NewEnvironment(t)
	c := &Chain{Env: env}

	trx := Begin(t, env)

	la := PutNode(trx, Leaf("a", "0"))
	lb := PutNode(trx, Leaf("b", "0"))
	c.Roots[0] = PutNode(trx, Branch(la, lb))

	lc := PutNode(trx, Leaf("c", "1"))
	c.Shared = PutNode(trx, &record.Extension{Affix: []byte{1}, Child: lc})
	ld := PutNode(trx, Leaf("d", "1"))
	c.Roots[1] = PutNode(trx, Branch(c.Shared, ld))

	le := PutNode(trx, Leaf("e", "2"))
	c.Roots[2] = PutNode(trx, Branch(c.Shared, le))

	c.OnlyR0 = []digest.Digest{c.Roots[0], la, lb}
	c.Retained = []digest.Digest{c.Roots[1], c.Roots[2], c.Shared, lc, ld, le}

	parent := digest.Zero
	for i := 0; i < 3; i += 1 {
		d := Deploy(string(rune('p' + i)))
		dh, _ := d.Hash()
		c.Deploys[i] = dh
		c.Blocks[i] = PutBlock(t, trx, &record.Block{
			Version:   record.BlockVersion2,
			Height:    uint64(i),
			Parent:    parent,
			StateRoot: c.Roots[i],
			Timestamp: 1600000000 + uint64(i),
			Era:       1,
			Body:      []byte{byte(i)},
		}, d)
		parent = c.Blocks[i]
	}

	Commit(t, trx)
	return c
}

// Has - check a key exists in a table or fail the test
func Has(t testing.TB, env *storage.Environment, table *storage.Table, key digest.Digest) bool {
	rd, err := env.BeginRead()
	if nil != err {
		t.Fatalf("begin read error: %s", err)
	}
	defer rd.Release()

	found, err := rd.Has(table, key[:])
	if nil != err {
		t.Fatalf("has error: %s", err)
	}
	return found
}
