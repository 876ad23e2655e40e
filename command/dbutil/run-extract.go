// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/extract"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func runExtract(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "SOURCE", "DESTINATION")
	if nil != err {
		return err
	}

	tables, err := parseTables(c.StringSlice("table"))
	if nil != err {
		return err
	}

	source, err := openEnvironment(m, args[0], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer source.Close()

	options := extractOptions(m)
	options.Resume = c.Bool("resume")

	result, err := extract.Export(source, tables, args[1], options)
	if nil != result {
		printJson(m.w, result)
	}
	return err
}

func runImport(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT", "SOURCE")
	if nil != err {
		return err
	}

	tables, err := parseTables(c.StringSlice("table"))
	if nil != err {
		return err
	}

	env, err := openEnvironment(m, args[0], storage.ReadWrite)
	if nil != err {
		return err
	}
	defer env.Close()

	options := extractOptions(m)
	options.Resume = c.Bool("resume")

	result, err := extract.Import(args[1], tables, env, options)
	if nil != result {
		printJson(m.w, result)
	}
	return err
}

func runExtractSlice(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "SOURCE", "DESTINATION")
	if nil != err {
		return err
	}

	block := c.String("block")
	stateRoot := c.String("state-root")
	if ("" == block) == ("" == stateRoot) {
		return fmt.Errorf("%w: --block or --state-root", ErrSelectOne)
	}

	source, err := openEnvironment(m, args[0], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer source.Close()

	var result *extract.SliceResult
	if "" != block {
		var hash digest.Digest
		if hash, err = digest.FromHex(block); nil != err {
			return err
		}
		result, err = extract.ExtractSlice(source, hash, args[1], extractOptions(m))
	} else {
		var root digest.Digest
		if root, err = digest.FromHex(stateRoot); nil != err {
			return err
		}
		result, err = extract.ExtractState(source, root, args[1], extractOptions(m))
	}
	if nil != result {
		printJson(m.w, result)
	}
	return err
}
