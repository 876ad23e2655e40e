// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/verify"
)

func TestCheckCleanChain(t *testing.T) {
	c := fixture.NewChain(t)
	rd := fixture.Read(t, c.Env)

	report, err := verify.Check(rd, storage.Tables(), verify.CheckOptions{Mode: verify.Full})
	require.Nil(t, err, "check")
	assert.True(t, report.OK(), "findings: %v", report.Findings)

	// 3 blocks, 3 deploy lists, 3 deploys, 9 trie nodes
	assert.Equal(t, 18, report.RecordsChecked, "records")
}

func TestCheckFindsBadRecords(t *testing.T) {
	c := fixture.NewChain(t)

	trx := fixture.Begin(t, c.Env)
	trx.Put(storage.Pool.Deploys, c.Deploys[0][:], []byte{7, 7})
	trx.Put(storage.Pool.Deploys, c.Deploys[1][:], append([]byte{1, 1}, 'z'))
	fixture.Commit(t, trx)

	rd := fixture.Read(t, c.Env)

	report, err := verify.Check(rd, []*storage.Table{storage.Pool.Deploys}, verify.CheckOptions{Mode: verify.Full})
	require.Nil(t, err, "check")
	assert.Equal(t, 1, report.Counts[verify.UndecodableRecord], "bad version: %v", report.Findings)
	assert.Equal(t, 1, report.Counts[verify.HashMismatch], "wrong content: %v", report.Findings)

	report, err = verify.Check(rd, []*storage.Table{storage.Pool.Deploys}, verify.CheckOptions{Mode: verify.FailFast})
	require.Nil(t, err, "check")
	assert.Equal(t, 1, len(report.Findings), "fail fast")
}

func TestCheckStartAt(t *testing.T) {
	c := fixture.NewChain(t)
	rd := fixture.Read(t, c.Env)

	report, err := verify.Check(rd, []*storage.Table{storage.Pool.TrieNodes}, verify.CheckOptions{Mode: verify.Full, StartAt: 5})
	require.Nil(t, err, "check")
	assert.Equal(t, 4, report.RecordsChecked, "skipped leading entries")
}
