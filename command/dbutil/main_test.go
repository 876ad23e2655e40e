// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/configuration"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// run the application against a temporary configuration
func run(t *testing.T, args ...string) (string, error) {
	dir := t.TempDir()
	config := filepath.Join(dir, "dbutil.conf")
	err := ioutil.WriteFile(config, []byte("return { logging = { directory = \"log\" } }\n"), 0600)
	require.Nil(t, err, "write configuration")

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err = app.Run(append([]string{"bitmark-dbutil", "--config", config}, args...))
	return out.String(), err
}

// the chain fixture closed so the command can open it
//
// the command initialises its own logging
func closedChain(t *testing.T) (*fixture.Chain, string) {
	dir := fixture.SetupTestLogger()
	defer fixture.TeardownTestLogger(dir)

	c := fixture.NewChain(t)
	path := c.Env.Path()
	require.Nil(t, c.Env.Close(), "close")
	return c, path
}

func TestExitCode(t *testing.T) {
	codes := []struct {
		err  error
		code int
	}{
		{nil, exitSuccess},
		{fault.ErrStoreBusy, exitBusy},
		{fmt.Errorf("wrapped: %w", fault.ErrCorruptEnvironment), exitCorruption},
		{fault.ErrTruncatedRecord, exitCorruption},
		{ErrFindings, exitCorruption},
		{fault.NewIoError("/x", errors.New("disk")), exitIo},
		{fault.ErrBlockNotFound, exitRefused},
		{fault.ErrReferencedByChild, exitRefused},
		{fault.ErrIncompleteImport, exitRefused},
		{fault.ErrDestinationExists, exitRefused},
		{fault.ErrNoRoots, exitUsage},
		{ErrMissingArgument, exitUsage},
		{errors.New("flag provided but not defined"), exitUsage},
	}
	for i, item := range codes {
		assert.Equal(t, item.code, exitCode(item.err), "%d: %v", i, item.err)
	}
}

func TestLatestBlockCommand(t *testing.T) {
	c, path := closedChain(t)

	out, err := run(t, "latest-block", "--summary", path)
	require.Nil(t, err, "latest-block: %s", out)

	var result struct {
		Hash   string `json:"hash"`
		Tables []struct {
			Name    string `json:"name"`
			Entries uint64 `json:"entries"`
		} `json:"tables"`
	}
	require.Nil(t, json.Unmarshal([]byte(out), &result), "json: %s", out)
	assert.Equal(t, c.Blocks[2].String(), result.Hash, "latest")
	assert.Equal(t, len(storage.Tables()), len(result.Tables), "summary")
}

func TestLatestBlockOutputFile(t *testing.T) {
	c, path := closedChain(t)
	output := filepath.Join(t.TempDir(), "latest.json")

	_, err := run(t, "latest-block", "--overwrite", path)
	assert.True(t, errors.Is(err, ErrOutputRequired), "overwrite alone: %v", err)

	out, err := run(t, "latest-block", "--output", output, path)
	require.Nil(t, err, "write file: %s", out)
	assert.Equal(t, "", out, "nothing on standard output")

	data, err := ioutil.ReadFile(output)
	require.Nil(t, err, "read output")
	var result struct {
		Hash string `json:"hash"`
	}
	require.Nil(t, json.Unmarshal(data, &result), "json: %s", data)
	assert.Equal(t, c.Blocks[2].String(), result.Hash, "latest")

	_, err = run(t, "latest-block", "--output", output, path)
	assert.Equal(t, exitRefused, exitCode(err), "existing file kept: %v", err)

	out, err = run(t, "latest-block", "--summary", "--output", output, "--overwrite", path)
	require.Nil(t, err, "overwrite: %s", out)
	data, err = ioutil.ReadFile(output)
	require.Nil(t, err, "read output")
	assert.Contains(t, string(data), `"tables"`, "replaced with the summary")
}

func TestVerifyAndSparsifyCommands(t *testing.T) {
	c, path := closedChain(t)

	out, err := run(t, "verify", "--mode", "full", path)
	require.Nil(t, err, "verify: %s", out)

	out, err = run(t, "sparsify", "--min-height", "1", path)
	require.Nil(t, err, "sparsify: %s", out)

	_, err = run(t, "verify", path)
	assert.Equal(t, exitCorruption, exitCode(err), "state roots of B0 now missing: %v", err)

	out, err = run(t, "verify", "--sparsified", "--min-height", "1", path)
	assert.Nil(t, err, "sparsified verify: %s", out)

	out, err = run(t, "verify", "--root", c.Roots[0].String(), path)
	assert.True(t, errors.Is(err, ErrFindings), "removed root: %v  %s", err, out)
}

func TestSparsifyWithoutRetainedBlocks(t *testing.T) {
	c, path := closedChain(t)

	out, err := run(t, "sparsify", "--min-height", "99", path)
	assert.Equal(t, exitUsage, exitCode(err), "no roots: %v  %s", err, out)
	assert.True(t, errors.Is(err, fault.ErrNoRoots), "no roots: %v", err)

	out, err = run(t, "verify", "--mode", "full", path)
	assert.Nil(t, err, "nothing deleted: %s", out)

	out, err = run(t, "sparsify", "--root", c.Roots[2].String(), path)
	assert.Nil(t, err, "explicit root: %s", out)
}

func TestRemoveBlockCommand(t *testing.T) {
	c, path := closedChain(t)

	_, err := run(t, "remove-block", "--yes", path, c.Blocks[1].String())
	assert.Equal(t, exitRefused, exitCode(err), "has a child: %v", err)

	out, err := run(t, "remove-block", "--yes", path, c.Blocks[2].String())
	require.Nil(t, err, "remove tip: %s", out)

	_, err = run(t, "remove-block", "--yes", path)
	assert.True(t, errors.Is(err, ErrMissingArgument), "missing hash: %v", err)
}

func TestVerifyAfterForcedRemoval(t *testing.T) {
	c, path := closedChain(t)

	out, err := run(t, "remove-block", "--yes", "--force", path, c.Blocks[1].String())
	require.Nil(t, err, "forced remove: %s", out)

	out, err = run(t, "verify", "--mode", "full", path)
	assert.Equal(t, exitCorruption, exitCode(err), "orphaned child: %v", err)
	assert.True(t, errors.Is(err, ErrFindings), "findings: %v", err)

	var report struct {
		BlocksChecked int `json:"blocksChecked"`
		Findings      []struct {
			Kind string `json:"kind"`
			Key  string `json:"key"`
		} `json:"findings"`
	}
	require.Nil(t, json.Unmarshal([]byte(out), &report), "json: %s", out)
	assert.Equal(t, 2, report.BlocksChecked, "remaining blocks")
	require.Equal(t, 1, len(report.Findings), "findings: %s", out)
	assert.Equal(t, "MissingParent", report.Findings[0].Kind, "kind")
	assert.Equal(t, c.Blocks[2].String(), report.Findings[0].Key, "child block")

	out, err = run(t, "verify", "--trie-only", path)
	assert.Nil(t, err, "trie alone is intact: %s", out)
}

func TestLoggingWithoutConfiguration(t *testing.T) {
	_, path := closedChain(t)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run([]string{"bitmark-dbutil", "latest-block", path})
	require.Nil(t, err, "latest-block: %s", out.String())

	_, err = os.Stat("bitmark-dbutil.log")
	assert.True(t, os.IsNotExist(err), "no log in the working directory: %v", err)

	_, err = os.Stat(filepath.Join(configuration.TemporaryLogDirectory(), "bitmark-dbutil.log"))
	assert.Nil(t, err, "log in the temporary directory")
}

func TestUsageErrors(t *testing.T) {
	_, path := closedChain(t)

	_, err := run(t, "check", path, "extra")
	assert.True(t, errors.Is(err, ErrTooManyArgument), "extra argument: %v", err)

	_, err = run(t, "check", "--table", "nonesuch", path)
	assert.True(t, fault.IsErrNotFound(err), "unknown table: %v", err)

	_, err = run(t, "extract-slice", path, filepath.Join(t.TempDir(), "slice"))
	assert.True(t, errors.Is(err, ErrSelectOne), "block or state root: %v", err)

	_, err = run(t, "verify", filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, exitIo, exitCode(err), "absent environment: %v", err)
}

func TestMain(m *testing.M) {
	cli.OsExiter = func(int) {}
	os.Exit(m.Run())
}
