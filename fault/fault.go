// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault

import (
	"errors"
	"fmt"
)

// error base
type GenericError string

// to allow for different classes of errors
type BusyError GenericError
type CorruptError GenericError
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError
type RecordError GenericError

// common errors - keep in alphabetic order
var (
	ErrAborted               = ProcessError("operation aborted")
	ErrBlockNotFound         = NotFoundError("block not found")
	ErrBranchEntryCount      = RecordError("branch entry count out of range")
	ErrBranchOrder           = RecordError("branch entries not in increasing index order")
	ErrCorruptEnvironment    = CorruptError("environment is corrupt")
	ErrDestinationExists     = ExistsError("destination already exists")
	ErrEnvironmentFull       = ProcessError("environment size limit reached")
	ErrIncompatibleVersion   = CorruptError("incompatible environment version")
	ErrIncompleteImport      = ProcessError("import did not complete the trie")
	ErrInvalidBatchSize      = InvalidError("invalid batch size")
	ErrInvalidConfiguration  = InvalidError("invalid configuration")
	ErrInvalidCount          = InvalidError("invalid count")
	ErrInvalidCursor         = InvalidError("invalid cursor")
	ErrInvalidDigest         = InvalidError("invalid digest")
	ErrInvalidEnvironment    = InvalidError("environment path is invalid")
	ErrInvalidMode           = InvalidError("invalid mode")
	ErrMissingNode           = NotFoundError("trie node not found")
	ErrNoRoots               = InvalidError("no state roots selected")
	ErrNotFound              = NotFoundError("key not found")
	ErrReadOnly              = InvalidError("environment is read only")
	ErrReferencedByChild     = ProcessError("block is referenced by a child block")
	ErrSameEnvironment       = InvalidError("source and destination are the same environment")
	ErrStoreBusy             = BusyError("environment is in use by another process")
	ErrTrailingData          = RecordError("trailing data after record")
	ErrTransactionInUse      = ProcessError("write transaction already in use")
	ErrTransactionNotActive  = ProcessError("write transaction is not active")
	ErrTruncatedRecord       = RecordError("record is truncated")
	ErrUnknownNodeTag        = RecordError("unknown trie node tag")
	ErrUnknownTable          = NotFoundError("unknown table")
	ErrUnsupportedRecordVers = RecordError("unsupported record version")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e BusyError) Error() string     { return string(e) }
func (e CorruptError) Error() string  { return string(e) }
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }
func (e RecordError) Error() string   { return string(e) }

// IoError - an underlying file system or store failure
type IoError struct {
	Path string
	Err  error
}

// NewIoError - wrap an error from the file system or the store
func NewIoError(path string, err error) error {
	if nil == err {
		return nil
	}
	return &IoError{
		Path: path,
		Err:  err,
	}
}

func (e *IoError) Error() string {
	if "" == e.Path {
		return fmt.Sprintf("i/o error: %s", e.Err)
	}
	return fmt.Sprintf("i/o error: %s: %s", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// determine the class of an error, looking through any wrapping
func IsErrBusy(e error) bool     { var t BusyError; return errors.As(e, &t) }
func IsErrCorrupt(e error) bool  { var t CorruptError; return errors.As(e, &t) }
func IsErrExists(e error) bool   { var t ExistsError; return errors.As(e, &t) }
func IsErrInvalid(e error) bool  { var t InvalidError; return errors.As(e, &t) }
func IsErrIo(e error) bool       { var t *IoError; return errors.As(e, &t) }
func IsErrNotFound(e error) bool { var t NotFoundError; return errors.As(e, &t) }
func IsErrProcess(e error) bool  { var t ProcessError; return errors.As(e, &t) }
func IsErrRecord(e error) bool   { var t RecordError; return errors.As(e, &t) }
