// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify_test

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/storage/mocks"
	"github.com/bitmark-inc/bitmark-dbutils/verify"
)

func TestMain(m *testing.M) {
	dir := fixture.SetupTestLogger()
	rc := m.Run()
	fixture.TeardownTestLogger(dir)
	os.Exit(rc)
}

func deleteKeys(t *testing.T, env *storage.Environment, table *storage.Table, keys ...digest.Digest) {
	trx := fixture.Begin(t, env)
	for _, k := range keys {
		trx.Delete(table, k[:])
	}
	fixture.Commit(t, trx)
}

func TestVerifyCleanChain(t *testing.T) {
	c := fixture.NewChain(t)
	rd := fixture.Read(t, c.Env)

	report, err := verify.Verify(rd, c.Roots[:], verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	assert.True(t, report.OK(), "no findings: %v", report.Findings)
	assert.Equal(t, len(c.OnlyR0)+len(c.Retained), report.NodesVisited, "every node once")
	assert.Equal(t, 3, report.BlocksChecked, "blocks")
}

func TestVerifySingleHashMismatch(t *testing.T) {
	env := fixture.NewEnvironment(t)

	trx := fixture.Begin(t, env)
	value := fixture.Leaf("x", "1").Pack()
	k := digest.NewDigest([]byte("not the digest of value"))
	trx.Put(storage.Pool.TrieNodes, k[:], value)
	other := fixture.PutNode(trx, fixture.Leaf("y", "2"))
	root := fixture.PutNode(trx, fixture.Branch(k, other))
	fixture.Commit(t, trx)

	rd := fixture.Read(t, env)
	report, err := verify.Verify(rd, []digest.Digest{root}, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")

	require.Equal(t, 1, len(report.Findings), "exactly one finding: %v", report.Findings)
	f := report.Findings[0]
	assert.Equal(t, verify.HashMismatch, f.Kind, "kind")
	assert.Equal(t, k, f.Key, "stored key")
	assert.Equal(t, record.HashOf(value), f.Actual, "actual digest")
	assert.Equal(t, 1, report.Counts[verify.HashMismatch], "count")
}

func TestVerifyDanglingReferenceAfterDelete(t *testing.T) {
	c := fixture.NewChain(t)

	rd := fixture.Read(t, c.Env)
	var lc digest.Digest
	_, err := verifyWalkChildOfShared(rd, c.Shared, &lc)
	require.Nil(t, err, "locate child")

	deleteKeys(t, c.Env, storage.Pool.TrieNodes, lc)

	rd = fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, c.Roots[1:], verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")

	// the shared subtree is walked once so the defect is reported once
	require.Equal(t, 1, len(report.Findings), "findings: %v", report.Findings)
	f := report.Findings[0]
	assert.Equal(t, verify.DanglingReference, f.Kind, "kind")
	assert.Equal(t, c.Shared, f.Key, "parent")
	assert.Equal(t, lc, f.Ref, "missing child")
}

// the single child of the shared extension node
func verifyWalkChildOfShared(reader storage.Reader, shared digest.Digest, child *digest.Digest) (record.Node, error) {
	value, err := reader.Get(storage.Pool.TrieNodes, shared[:])
	if nil != err {
		return nil, err
	}
	node, err := record.DecodeTrieNode(value)
	if nil != err {
		return nil, err
	}
	*child = node.Children()[0]
	return node, nil
}

func TestVerifyFailFastStopsAtFirstFinding(t *testing.T) {
	env := fixture.NewEnvironment(t)
	trx := fixture.Begin(t, env)
	a := record.HashOf(fixture.Leaf("a", "gone").Pack())
	b := record.HashOf(fixture.Leaf("b", "gone").Pack())
	root := fixture.PutNode(trx, fixture.Branch(a, b))
	fixture.Commit(t, trx)

	rd := fixture.Read(t, env)

	report, err := verify.Verify(rd, []digest.Digest{root}, verify.Options{Mode: verify.FailFast})
	require.Nil(t, err, "fail fast")
	assert.Equal(t, 1, len(report.Findings), "one finding")

	report, err = verify.Verify(rd, []digest.Digest{root}, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "full")
	assert.Equal(t, 2, len(report.Findings), "all findings")
	assert.Equal(t, 2, report.Counts[verify.DanglingReference], "counted")
}

func TestVerifyMissingParent(t *testing.T) {
	c := fixture.NewChain(t)
	deleteKeys(t, c.Env, storage.Pool.Blocks, c.Blocks[1])

	rd := fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, nil, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	require.Equal(t, 1, len(report.Findings), "findings: %v", report.Findings)
	assert.Equal(t, verify.MissingParent, report.Findings[0].Kind, "kind")
	assert.Equal(t, c.Blocks[2], report.Findings[0].Key, "orphan block")
	assert.Equal(t, c.Blocks[1], report.Findings[0].Ref, "absent parent")

	// a designated root block may lack its parent
	report, err = verify.Verify(rd, nil, verify.Options{
		Mode:       verify.Full,
		RootBlocks: []digest.Digest{c.Blocks[2]},
	})
	require.Nil(t, err, "verify")
	assert.True(t, report.OK(), "anchor accepted: %v", report.Findings)
}

func TestVerifySparsifiedStateRoots(t *testing.T) {
	c := fixture.NewChain(t)
	deleteKeys(t, c.Env, storage.Pool.TrieNodes, c.OnlyR0...)

	rd := fixture.Read(t, c.Env)

	report, err := verify.Verify(rd, c.Roots[1:], verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	require.Equal(t, 1, len(report.Findings), "findings: %v", report.Findings)
	assert.Equal(t, verify.MissingStateRoot, report.Findings[0].Kind, "kind")
	assert.Equal(t, c.Blocks[0], report.Findings[0].Key, "block")
	assert.Equal(t, c.Roots[0], report.Findings[0].Ref, "root")

	report, err = verify.Verify(rd, c.Roots[1:], verify.Options{Mode: verify.Full, Sparsified: true})
	require.Nil(t, err, "verify")
	assert.True(t, report.OK(), "expected after sparsify: %v", report.Findings)
}

func TestVerifyMissingDeployAndUndecodableBlock(t *testing.T) {
	c := fixture.NewChain(t)
	deleteKeys(t, c.Env, storage.Pool.Deploys, c.Deploys[1])

	trx := fixture.Begin(t, c.Env)
	junk := digest.NewDigest([]byte("junk"))
	trx.Put(storage.Pool.Blocks, junk[:], []byte{0xee, 0xee})
	fixture.Commit(t, trx)

	rd := fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, nil, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	assert.Equal(t, 1, report.Counts[verify.MissingDeploy], "missing deploy: %v", report.Findings)
	assert.Equal(t, 1, report.Counts[verify.UndecodableRecord], "undecodable block: %v", report.Findings)
	assert.Equal(t, 4, report.BlocksChecked, "blocks")

	for _, f := range report.Findings {
		if verify.MissingDeploy == f.Kind {
			assert.Equal(t, c.Blocks[1], f.Key, "block")
			assert.Equal(t, c.Deploys[1], f.Ref, "deploy")
		}
	}
}

func TestVerifyReaderErrorIsNotAFinding(t *testing.T) {
	ctl := gomock.NewController(t)
	defer ctl.Finish()

	ioErr := fault.NewIoError("/env", errors.New("read failed"))
	reader := mocks.NewMockReader(ctl)
	reader.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, ioErr).AnyTimes()

	report, err := verify.Verify(reader, []digest.Digest{{1}}, verify.Options{Mode: verify.Full, TrieOnly: true})
	assert.True(t, fault.IsErrIo(err), "i/o error returned")
	assert.True(t, report.OK(), "no findings invented")
}

func TestReportJSON(t *testing.T) {
	c := fixture.NewChain(t)
	deleteKeys(t, c.Env, storage.Pool.Blocks, c.Blocks[0])

	rd := fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, nil, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")

	b, err := json.Marshal(report)
	require.Nil(t, err, "marshal")

	var decoded map[string]interface{}
	require.Nil(t, json.Unmarshal(b, &decoded), "unmarshal")
	counts := decoded["counts"].(map[string]interface{})
	assert.Equal(t, float64(1), counts["MissingParent"], "kind names as keys")
}

func TestParseMode(t *testing.T) {
	m, err := verify.ParseMode("full")
	assert.Nil(t, err)
	assert.Equal(t, verify.Full, m)

	m, err = verify.ParseMode("fail-fast")
	assert.Nil(t, err)
	assert.Equal(t, verify.FailFast, m)

	_, err = verify.ParseMode("sometimes")
	assert.True(t, fault.IsErrInvalid(err), "unknown mode")
}

func TestVerifyChecksBlocksUnlessTrieOnly(t *testing.T) {
	c := fixture.NewChain(t)
	deleteKeys(t, c.Env, storage.Pool.Blocks, c.Blocks[1])

	rd := fixture.Read(t, c.Env)
	report, err := verify.Verify(rd, nil, verify.Options{Mode: verify.Full})
	require.Nil(t, err, "verify")
	assert.Equal(t, 2, report.BlocksChecked, "blocks checked by default")
	assert.Equal(t, 1, report.Counts[verify.MissingParent], "orphan found")

	report, err = verify.Verify(rd, nil, verify.Options{Mode: verify.Full, TrieOnly: true})
	require.Nil(t, err, "verify trie only")
	assert.Equal(t, 0, report.BlocksChecked, "blocks skipped")
	assert.True(t, report.OK(), "no findings: %v", report.Findings)
}
