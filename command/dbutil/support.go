// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/compact"
	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/extract"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// the positional arguments of a command, exactly n of them
func arguments(c *cli.Context, names ...string) ([]string, error) {
	args := c.Args()
	if len(args) < len(names) {
		return nil, fmt.Errorf("%w: %s", ErrMissingArgument, names[len(args)])
	}
	if len(args) > len(names) {
		return nil, fmt.Errorf("%w: %q", ErrTooManyArgument, args[len(names)])
	}
	return args, nil
}

func openEnvironment(m *metadata, path string, readOnly bool) (*storage.Environment, error) {
	if m.verbose {
		fmt.Fprintf(m.e, "environment: %s  read only: %t\n", path, readOnly)
	}
	return storage.Open(path, readOnly, m.config.MaxSize)
}

func parseDigests(values []string) ([]digest.Digest, error) {
	digests := make([]digest.Digest, 0, len(values))
	for _, s := range values {
		d, err := digest.FromHex(s)
		if nil != err {
			return nil, fmt.Errorf("%w: %q", err, s)
		}
		digests = append(digests, d)
	}
	return digests, nil
}

func parseTables(names []string) ([]*storage.Table, error) {
	tables := make([]*storage.Table, 0, len(names))
	for _, name := range names {
		table, err := storage.TableByName(name)
		if nil != err {
			return nil, fmt.Errorf("%w: %q", err, name)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// explicit roots, or the state roots of blocks at or above min-height
func selectRoots(c *cli.Context, reader storage.Reader) ([]digest.Digest, error) {
	if values := c.StringSlice("root"); len(values) > 0 {
		return parseDigests(values)
	}
	return compact.RetainedRoots(reader, c.Uint64("min-height"))
}

func compactOptions(m *metadata) compact.Options {
	return compact.Options{
		BatchSize:        m.config.BatchSize,
		BatchBytes:       m.config.BatchBytes,
		ProgressInterval: m.config.Interval(),
		Shutdown:         m.shutdown,
	}
}

func extractOptions(m *metadata) extract.Options {
	return extract.Options{
		BatchRecords:     m.config.BatchSize,
		BatchBytes:       m.config.BatchBytes,
		MaxSize:          m.config.MaxSize,
		ProgressInterval: m.config.Interval(),
		Shutdown:         m.shutdown,
	}
}

// write a result as indented JSON
func printJson(w io.Writer, message interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(message)
}
