// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strings"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bitmark-dbutils/inspect"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "table", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 't'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if err != nil {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["help"]) > 0 {
		exitwithstatus.Message("usage: %s [--help] [--verbose] [--quiet] [--table=NAME]... src_db dst_db", program)
	}

	if len(arguments) != 2 {
		exitwithstatus.Message("%s: exactly 2 arguments are required", program)
	}

	level := "warn"
	if len(options["verbose"]) > 0 {
		level = "info"
	}

	// internal logger
	logging := logger.Configuration{
		Directory: ".",
		File:      "dbmatch.log",
		Size:      1048576,
		Count:     10,
		Console:   0 == len(options["quiet"]),
		Levels: map[string]string{
			logger.DefaultTag: level,
		},
	}

	// start logging
	if err = logger.Initialise(logging); err != nil {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	// create a logger channel for the main program
	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", version)

	tables := []*storage.Table{}
	for _, name := range options["table"] {
		table, err := storage.TableByName(name)
		if err != nil {
			exitwithstatus.Message("%s: table: %q  error: %s", program, name, err)
		}
		tables = append(tables, table)
	}

	srcDatabase := arguments[0]
	dstDatabase := arguments[1]

	src, err := storage.Open(srcDatabase, storage.ReadOnly, 0)
	if err != nil {
		exitwithstatus.Message("%s: open src database: %q  error: %s", program, srcDatabase, err)
	}
	defer src.Close()

	dst, err := storage.Open(dstDatabase, storage.ReadOnly, 0)
	if err != nil {
		exitwithstatus.Message("%s: open dst database: %q  error: %s", program, dstDatabase, err)
	}
	defer dst.Close()

	log.Infof("src: %s", srcDatabase)
	log.Infof("dst: %s", dstDatabase)

	srcRead, err := src.BeginRead()
	if err != nil {
		exitwithstatus.Message("%s: read src: %s", program, err)
	}
	defer srcRead.Release()

	dstRead, err := dst.BeginRead()
	if err != nil {
		exitwithstatus.Message("%s: read dst: %s", program, err)
	}
	defer dstRead.Release()

	results, err := inspect.Compare(srcRead, dstRead, tables)
	if err != nil {
		exitwithstatus.Message("%s: comparison error: %s", program, err)
	}

	mismatch := 0
	for _, r := range results {
		fmt.Printf("%-14s records: %8d  missing: %8d  different: %8d  extra: %8d\n",
			r.Name, r.Records, r.Missing, r.Different, r.Extra)
		if !r.Equal() {
			mismatch += 1
			fmt.Printf("  %s\n", strings.Join(r.Keys, "\n  "))
		}
	}
	if mismatch > 0 {
		exitwithstatus.Message("%s: %d tables differ", program, mismatch)
	}
}
