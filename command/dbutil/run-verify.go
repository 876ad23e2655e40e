// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/bitmark-dbutils/verify"
)

func runVerify(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT")
	if nil != err {
		return err
	}

	mode, err := verify.ParseMode(c.String("mode"))
	if nil != err {
		return err
	}

	rootBlocks, err := parseDigests(c.StringSlice("root-block"))
	if nil != err {
		return err
	}

	env, err := openEnvironment(m, args[0], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer env.Close()

	rd, err := env.BeginRead()
	if nil != err {
		return err
	}
	defer rd.Release()

	roots, err := selectRoots(c, rd)
	if nil != err {
		return err
	}
	if m.verbose {
		fmt.Fprintf(m.e, "mode: %s  roots: %d\n", mode, len(roots))
	}

	report, err := verify.Verify(rd, roots, verify.Options{
		Mode:             mode,
		Sparsified:       c.Bool("sparsified"),
		RootBlocks:       rootBlocks,
		TrieOnly:         c.Bool("trie-only"),
		ProgressInterval: m.config.Interval(),
	})
	if nil != err {
		return err
	}

	if err := printJson(m.w, report); nil != err {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d", ErrFindings, len(report.Findings))
	}
	return nil
}

func runCheck(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT")
	if nil != err {
		return err
	}

	mode, err := verify.ParseMode(c.String("mode"))
	if nil != err {
		return err
	}

	tables, err := parseTables(c.StringSlice("table"))
	if nil != err {
		return err
	}

	env, err := openEnvironment(m, args[0], storage.ReadOnly)
	if nil != err {
		return err
	}
	defer env.Close()

	rd, err := env.BeginRead()
	if nil != err {
		return err
	}
	defer rd.Release()

	report, err := verify.Check(rd, tables, verify.CheckOptions{
		Mode:             mode,
		StartAt:          c.Uint64("start-at"),
		ProgressInterval: m.config.Interval(),
	})
	if nil != err {
		return err
	}

	if err := printJson(m.w, report); nil != err {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d", ErrFindings, len(report.Findings))
	}
	return nil
}
