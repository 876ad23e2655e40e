// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/inspect"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func runLatestBlock(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT")
	if nil != err {
		return err
	}

	output := c.String("output")
	if c.Bool("overwrite") && "" == output {
		return ErrOutputRequired
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

	info, err := inspect.LatestBlock(rd)
	if nil != err {
		return err
	}

	// not every environment sits in a network directory
	if network, err := inspect.NetworkName(args[0]); nil == err {
		info.Network = network
	}

	var message interface{} = info
	if c.Bool("summary") {
		summary, err := inspect.Summary(rd)
		if nil != err {
			return err
		}
		message = struct {
			*inspect.BlockInfo
			Tables []inspect.TableSummary `json:"tables"`
		}{
			BlockInfo: info,
			Tables:    summary,
		}
	}

	if "" == output {
		return printJson(m.w, message)
	}
	return writeJsonFile(output, c.Bool("overwrite"), message)
}

// an existing file is only replaced when overwrite is set
func writeJsonFile(fileName string, overwrite bool, message interface{}) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	fd, err := os.OpenFile(fileName, flags, 0644)
	if os.IsExist(err) {
		return fmt.Errorf("%w: %s", fault.ErrDestinationExists, fileName)
	} else if nil != err {
		return fault.NewIoError(fileName, err)
	}

	err = printJson(fd, message)
	if e := fd.Close(); nil == err {
		err = e
	}
	return fault.NewIoError(fileName, err)
}
