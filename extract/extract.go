// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract

import (
	"fmt"
	"os"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
)

// Export - copy tables of an environment into a new environment at destPath
//
// destPath must not exist unless resuming an earlier export into the
// environment there
func Export(source *storage.Environment, tables []*storage.Table, destPath string, options Options) (*Result, error) {
	if _, _, err := options.bounds(); nil != err {
		return nil, err
	}

	same, err := storage.SamePath(source.Path(), destPath)
	if nil != err {
		return nil, err
	}
	if same {
		return nil, fault.ErrSameEnvironment
	}

	_, err = os.Stat(destPath)
	if nil == err {
		if !options.Resume {
			return nil, fmt.Errorf("%w: %s", fault.ErrDestinationExists, destPath)
		}
		ok, err := storage.IsEnvironment(destPath)
		if nil != err {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: resume: %s", fault.ErrInvalidEnvironment, destPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, fault.NewIoError(destPath, err)
	}

	dest, err := storage.Open(destPath, storage.ReadWrite, options.MaxSize)
	if nil != err {
		return nil, err
	}
	defer dest.Close()

	rd, err := source.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	result := &Result{
		Source:      source.Path(),
		Destination: destPath,
	}
	err = copyTables(rd, dest, tables, options, result)
	return result, err
}

// Import - copy tables from the environment at sourcePath into dest
func Import(sourcePath string, tables []*storage.Table, dest *storage.Environment, options Options) (*Result, error) {
	if _, _, err := options.bounds(); nil != err {
		return nil, err
	}

	same, err := storage.SamePath(sourcePath, dest.Path())
	if nil != err {
		return nil, err
	}
	if same {
		return nil, fault.ErrSameEnvironment
	}

	source, err := storage.Open(sourcePath, storage.ReadOnly, 0)
	if nil != err {
		return nil, err
	}
	defer source.Close()

	rd, err := source.BeginRead()
	if nil != err {
		return nil, err
	}
	defer rd.Release()

	result := &Result{
		Source:      sourcePath,
		Destination: dest.Path(),
	}
	err = copyTables(rd, dest, tables, options, result)
	return result, err
}
