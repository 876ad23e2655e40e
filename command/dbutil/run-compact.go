// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/compact"
	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/extract"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func runSparsify(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT")
	if nil != err {
		return err
	}

	env, err := openEnvironment(m, args[0], storage.ReadWrite)
	if nil != err {
		return err
	}
	defer env.Close()

	roots, err := rootsOf(c, env)
	if nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "retained roots: %d\n", len(roots))
	}

	result, err := compact.Sparsify(env, roots, compactOptions(m))
	if nil != result {
		printJson(m.w, result)
	}
	return err
}

func runUnsparsify(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT", "SOURCE")
	if nil != err {
		return err
	}

	same, err := storage.SamePath(args[0], args[1])
	if nil != err {
		return err
	}
	if same {
		return fault.ErrSameEnvironment
	}

	env, err := openEnvironment(m, args[0], storage.ReadWrite)
	if nil != err {
		return err
	}
	defer env.Close()

	source, err := openEnvironment(m, args[1], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer source.Close()

	roots, err := rootsOf(c, env)
	if nil != err {
		return err
	}

	rd, err := source.BeginRead()
	if nil != err {
		return err
	}
	defer rd.Release()

	result, err := compact.Unsparsify(env, rd, roots, compactOptions(m))
	if nil != result {
		printJson(m.w, result)
		if nil != result.Report && !result.Report.OK() {
			printJson(m.w, result.Report)
		}
	}
	return err
}

func runCompact(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "SOURCE", "DESTINATION")
	if nil != err {
		return err
	}

	mode, err := compact.ParseDestination(c.String("destination"))
	if nil != err {
		return err
	}

	source, err := openEnvironment(m, args[0], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer source.Close()

	roots, err := rootsOf(c, source)
	if nil != err {
		return err
	}

	type compactResult struct {
		Trie   *compact.UnsparsifyResult `json:"trie"`
		Blocks *extract.Result           `json:"blocks,omitempty"`
	}
	result := compactResult{}

	result.Trie, err = compact.Copy(source, args[1], mode, m.config.MaxSize, roots, compactOptions(m))
	if nil != err {
		printJson(m.w, result)
		return err
	}

	if c.Bool("with-blocks") {
		options := extractOptions(m)
		options.Resume = true
		tables := []*storage.Table{
			storage.Pool.Blocks,
			storage.Pool.BlockDeploys,
			storage.Pool.Deploys,
		}
		result.Blocks, err = extract.Export(source, tables, args[1], options)
	}

	printJson(m.w, result)
	return err
}

// roots from the command line or from the blocks of an environment
func rootsOf(c *cli.Context, env *storage.Environment) ([]digest.Digest, error) {
	rd, err := env.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	return selectRoots(c, rd)
}
