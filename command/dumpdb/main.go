// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"

	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

// terminal escapes for the label and data of each output line
type palette struct {
	keyLabel string
	key      string
	valLabel string
	val      string
	decLabel string
	dec      string
	end      string
}

var colours = palette{
	keyLabel: "\033[1;36m",
	key:      "\033[1;31m",
	valLabel: "\033[1;33m",
	val:      "\033[1;34m",
	decLabel: "\033[1;35m",
	dec:      "\033[0;32m",
	end:      "\033[0m",
}

// main program
func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "list", HasArg: getoptions.NO_ARGUMENT, Short: 'l'},
		{Long: "early", HasArg: getoptions.NO_ARGUMENT, Short: 'e'},
		{Long: "colour", HasArg: getoptions.NO_ARGUMENT, Short: 'g'},
		{Long: "ascii", HasArg: getoptions.NO_ARGUMENT, Short: 'a'},
		{Long: "decode", HasArg: getoptions.NO_ARGUMENT, Short: 'd'},
		{Long: "file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'f'},
		{Long: "count", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		exitwithstatus.Message("%s: version: %s", program, version)
	}

	if len(options["list"]) > 0 {
		fmt.Printf(" tables:\n")
		for _, table := range storage.Tables() {
			fmt.Printf("       %c → %s\n", table.Prefix(), table.Name())
		}
		return
	}

	if len(options["help"]) > 0 || 0 == len(arguments) || 1 != len(options["file"]) {
		exitwithstatus.Message("usage: %s [--help] [--verbose] [--list] [--decode] [--ascii] [--colour] [--early] [--count=N] --file=DIRECTORY table [key-prefix]", program)
	}

	// stop if prefix no longer matches
	earlyStop := len(options["early"]) > 0

	colour := len(options["colour"]) > 0
	ascii := len(options["ascii"]) > 0
	decode := len(options["decode"]) > 0
	verbose := len(options["verbose"]) > 0

	count := 10
	if len(options["count"]) > 0 {
		count, err = strconv.Atoi(options["count"][0])
		if nil != err {
			exitwithstatus.Message("%s: convert count error: %s", program, err)
		}
		if count < 1 {
			exitwithstatus.Message("%s: invalid count: %d", program, count)
		}
	}

	filename := options["file"][0]
	table, err := storage.TableByName(arguments[0])
	if nil != err {
		exitwithstatus.Message("%s: table: %q  error: %s", program, arguments[0], err)
	}
	if verbose {
		fmt.Printf("read table: %s from: %q\n", table, filename)
	}

	prefix := []byte(nil)
	if len(arguments) > 1 {
		prefix, err = hex.DecodeString(arguments[1])
		if nil != err {
			exitwithstatus.Message("%s: convert prefix error: %s", program, err)
		}
	}

	logging := logger.Configuration{
		Directory: ".",
		File:      "bitmark-dumpdb.log",
		Size:      1048576,
		Count:     10,
		Console:   true,
		Levels: map[string]string{
			logger.DefaultTag: "critical",
		},
	}

	// start logging
	if err = logger.Initialise(logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed with error: %s", program, err)
	}
	defer logger.Finalise()

	env, err := storage.Open(filename, storage.ReadOnly, 0)
	if nil != err {
		exitwithstatus.Message("%s: storage setup failed with error: %s", program, err)
	}
	defer env.Close()

	rd, err := env.BeginRead()
	if nil != err {
		exitwithstatus.Message("%s: read error: %s", program, err)
	}
	defer rd.Release()

	cursor := storage.NewCursor(rd, table)
	if len(prefix) > 0 {
		cursor.Seek(prefix)
	}

	data, err := cursor.Fetch(count)
	if nil != err {
		exitwithstatus.Message("%s: error on Fetch: %s", program, err)
	}

	p := palette{}
	if colour {
		p = colours
	}

	l := len(prefix)
	w := os.Stdout

print_loop:
	for i, e := range data {
		if earlyStop && (len(e.Key) < l || !bytes.Equal(prefix, e.Key[:l])) {
			fmt.Fprintf(w, "*** early stop\n")
			break print_loop
		}

		fmt.Fprintf(w, "%d: %sKey: %s%x%s\n", i, p.keyLabel, p.key, e.Key, p.end)
		if ascii {
			hexDump(w, fmt.Sprintf("%d: %sVal: %s", i, p.valLabel, p.val), p.end, e.Value)
		} else {
			fmt.Fprintf(w, "%d: %sVal: %s%x%s\n", i, p.valLabel, p.val, e.Value, p.end)
		}

		if decode {
			s, err := decodeValue(table, e.Value)
			if nil != err {
				s = "error: " + err.Error()
			}
			fmt.Fprintf(w, "%d: %sDec: %s%s%s\n", i, p.decLabel, p.dec, s, p.end)
		}
	}
}

// decode a record of a table as JSON text
func decodeValue(table *storage.Table, value []byte) (string, error) {
	var item interface{}
	var err error

	switch table {
	case storage.Pool.Blocks:
		item, err = record.DecodeBlock(value)
	case storage.Pool.BlockDeploys:
		item, err = record.DecodeDeployList(value)
	case storage.Pool.Deploys:
		item, err = record.DecodeDeploy(value)
	case storage.Pool.TrieNodes:
		var node record.Node
		node, err = record.DecodeTrieNode(value)
		if nil == err {
			item = struct {
				Tag  string      `json:"tag"`
				Node record.Node `json:"node"`
			}{
				Tag:  node.Tag().String(),
				Node: node,
			}
		}
	default:
		return "", fmt.Errorf("no decoder for table: %s", table)
	}
	if nil != err {
		return "", err
	}

	b, err := json.Marshal(item)
	if nil != err {
		return "", err
	}
	return string(b), nil
}

// bytes shown on each line of a hex dump
const bytesPerLine = 32

// hex and printable text of data, one prefixed line per bytesPerLine bytes
func hexDump(w io.Writer, prefix string, suffix string, data []byte) {
	for offset := 0; offset < len(data); offset += bytesPerLine {
		end := offset + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		line := data[offset:end]

		var text bytes.Buffer
		fmt.Fprintf(&text, "%s%04x  ", prefix, offset)
		for j := 0; j < bytesPerLine; j += 1 {
			if bytesPerLine/2 == j {
				text.WriteByte(' ')
			}
			if j < len(line) {
				fmt.Fprintf(&text, "%02x ", line[j])
			} else {
				text.WriteString("   ")
			}
		}
		text.WriteString(" |")
		for _, c := range line {
			if c < 32 || c >= 127 {
				c = '.'
			}
			text.WriteByte(c)
		}
		fmt.Fprintf(&text, "|%s\n", suffix)

		w.Write(text.Bytes())
	}
}
