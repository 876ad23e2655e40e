// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// common errors - keep in alphabetic order
const (
	ErrFindings        = fault.CorruptError("integrity problems found")
	ErrMissingArgument = fault.InvalidError("missing argument")
	ErrNotConfirmed    = fault.ProcessError("not confirmed")
	ErrOutputRequired  = fault.InvalidError("overwrite requires an output file")
	ErrSelectOne       = fault.InvalidError("select exactly one of the options")
	ErrTooManyArgument = fault.InvalidError("too many arguments")
)

// process exit status
const (
	exitSuccess    = 0
	exitUsage      = 1
	exitIo         = 2
	exitCorruption = 3
	exitRefused    = 4
	exitBusy       = 5
)

// map an error class to the process exit status
func exitCode(err error) int {
	switch {
	case nil == err:
		return exitSuccess
	case fault.IsErrBusy(err):
		return exitBusy
	case fault.IsErrCorrupt(err), fault.IsErrRecord(err):
		return exitCorruption
	case fault.IsErrIo(err):
		return exitIo
	case fault.IsErrNotFound(err), fault.IsErrProcess(err), fault.IsErrExists(err):
		return exitRefused
	default:
		return exitUsage
	}
}
