// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/remove"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

func runRemoveBlock(c *cli.Context) error {

	m := c.App.Metadata["config"].(*metadata)

	args, err := arguments(c, "ENVIRONMENT", "BLOCK-HASH")
	if nil != err {
		return err
	}

	hash, err := digest.FromHex(args[1])
	if nil != err {
		return err
	}

	options := remove.Options{
		PurgeDeploys: c.Bool("purge-deploys"),
		Force:        c.Bool("force"),
		Reclaimable:  c.Bool("reclaimable"),
	}

	if !c.Bool("yes") {
		prompt := fmt.Sprintf("remove block: %s from: %s [yN]: ", hash, args[0])
		if err := confirm(prompt); nil != err {
			return err
		}
	}

	env, err := openEnvironment(m, args[0], storage.ReadWrite)
	if nil != err {
		return err
	}
	defer env.Close()

	result, err := remove.RemoveBlock(env, hash, options)
	if nil != result {
		printJson(m.w, result)
	}
	return err
}

// ask on the controlling terminal, anything but yes refuses
func confirm(prompt string) error {
	ttyFd, err := os.OpenFile("/dev/tty", os.O_RDWR, os.ModePerm)
	if nil != err {
		return fmt.Errorf("%w: no terminal, use --yes", ErrNotConfirmed)
	}
	defer ttyFd.Close()

	oldState, err := terminal.MakeRaw(int(ttyFd.Fd()))
	if nil != err {
		return fault.NewIoError("/dev/tty", err)
	}
	defer terminal.Restore(int(ttyFd.Fd()), oldState)

	console := terminal.NewTerminal(ttyFd, prompt)
	for {
		line, err := console.ReadLine()
		if nil != err {
			return ErrNotConfirmed
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		case "", "n", "no", "q", "quit":
			return ErrNotConfirmed
		default:
			fmt.Fprintf(console, "please answer yes or no\r\n")
		}
	}
}
