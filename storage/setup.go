// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"syscall"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_errors "github.com/syndtr/goleveldb/leveldb/errors"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/logger"
)

// exported tables
//
// note all must be exported (i.e. initial capital) or initialisation will panic
type tables struct {
	Blocks       *Table `prefix:"B" name:"blocks"`
	BlockDeploys *Table `prefix:"I" name:"block_deploys"`
	Deploys      *Table `prefix:"D" name:"deploys"`
	TrieNodes    *Table `prefix:"T" name:"trie"`
}

// Pool - the set of exported tables
var Pool tables

// all tables in declaration order
var tableList []*Table

// for database version
var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

// covers every table and the version key
var wholeRange = ldb_util.Range{
	Start: []byte{0x00},
	Limit: []byte{0xff},
}

const (
	currentVersion = 1
)

// environment access modes
const (
	ReadOnly  = true
	ReadWrite = false
)

// Environment - an open LevelDB store
type Environment struct {
	sync.Mutex

	log      *logger.L
	path     string
	readOnly bool
	maxSize  uint64
	db       *leveldb.DB
	writer   *WriteTransaction
}

func init() {
	if err := scanTables(); nil != err {
		panic(err)
	}
}

// build the table handles from the struct tags
func scanTables() error {

	// this will be a struct type
	poolType := reflect.TypeOf(Pool)

	// get write access by using pointer + Elem()
	poolValue := reflect.ValueOf(&Pool).Elem()

	seen := make(map[byte]struct{})

	// scan each field
	for i := 0; i < poolType.NumField(); i += 1 {

		fieldInfo := poolType.Field(i)

		prefixTag := fieldInfo.Tag.Get("prefix")
		if 1 != len(prefixTag) {
			return fmt.Errorf("table: %v has invalid prefix: %q", fieldInfo, prefixTag)
		}
		prefix := prefixTag[0]
		if 0 == prefix || 0xff == prefix {
			return fmt.Errorf("table: %v has reserved prefix: %q", fieldInfo, prefixTag)
		}
		if _, ok := seen[prefix]; ok {
			return fmt.Errorf("table: %v has duplicate prefix: %q", fieldInfo, prefixTag)
		}
		seen[prefix] = struct{}{}

		name := fieldInfo.Tag.Get("name")
		if "" == name {
			return fmt.Errorf("table: %v has no name", fieldInfo)
		}

		t := &Table{
			name:   name,
			prefix: prefix,
			limit:  []byte{prefix + 1},
		}
		poolValue.Field(i).Set(reflect.ValueOf(t))
		tableList = append(tableList, t)
	}
	return nil
}

// Open - open up an environment
//
// a read only environment must already exist; maxSize of zero means
// the environment size is not bounded
func Open(path string, readOnly bool, maxSize uint64) (*Environment, error) {

	log := logger.New("storage")

	if "" == path {
		return nil, fault.ErrInvalidEnvironment
	}

	if readOnly {
		info, err := os.Stat(path)
		if nil != err {
			return nil, fault.NewIoError(path, err)
		}
		if !info.IsDir() {
			return nil, fault.ErrInvalidEnvironment
		}
	}

	opt := &ldb_opt.Options{
		ErrorIfExist:   false,
		ErrorIfMissing: readOnly,
		ReadOnly:       readOnly,
	}

	db, err := leveldb.OpenFile(path, opt)
	if nil != err {
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			log.Warnf("open: %q: lock held: %s", path, err)
			return nil, fault.ErrStoreBusy
		}
		log.Errorf("open: %q: error: %s", path, err)
		return nil, mapError(path, err)
	}

	ok := false
	defer func() {
		if !ok {
			db.Close()
		}
	}()

	version, err := getVersion(db)
	if nil != err {
		return nil, mapError(path, err)
	}

	// ensure no database downgrade
	if version > currentVersion {
		log.Criticalf("environment version: %d > current version: %d", version, currentVersion)
		return nil, fmt.Errorf("%w: %d > %d", fault.ErrIncompatibleVersion, version, currentVersion)
	}

	if 0 == version && !readOnly {
		// database was empty so tag as current version
		if err := putVersion(db, currentVersion); nil != err {
			return nil, mapError(path, err)
		}
	}

	log.Infof("open: %q  read only: %t  max size: %d", path, readOnly, maxSize)

	ok = true // prevent db close
	return &Environment{
		log:      log,
		path:     path,
		readOnly: readOnly,
		maxSize:  maxSize,
		db:       db,
	}, nil
}

// Close - release the environment, aborting any open write transaction
func (e *Environment) Close() error {
	e.Lock()
	defer e.Unlock()

	if nil == e.db {
		return nil
	}
	if nil != e.writer {
		e.log.Warn("close with active write transaction: aborted")
		e.writer.release()
	}
	err := e.db.Close()
	e.db = nil
	return mapError(e.path, err)
}

// Path - the directory of the environment
func (e *Environment) Path() string {
	return e.path
}

// IsReadOnly - true if opened read only
func (e *Environment) IsReadOnly() bool {
	return e.readOnly
}

// SamePath - true if two environment paths name the same directory
func SamePath(a string, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if nil != err {
		return false, fault.NewIoError(a, err)
	}
	absB, err := filepath.Abs(b)
	if nil != err {
		return false, fault.NewIoError(b, err)
	}
	return filepath.Clean(absA) == filepath.Clean(absB), nil
}

// IsEnvironment - true if path holds an environment created by Open
//
// a directory without a store, or a store that was never tagged with
// a version, is not an environment
func IsEnvironment(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	} else if nil != err {
		return false, fault.NewIoError(path, err)
	}
	if !info.IsDir() {
		return false, nil
	}

	// every LevelDB store names its manifest here
	_, err = os.Stat(filepath.Join(path, "CURRENT"))
	if os.IsNotExist(err) {
		return false, nil
	} else if nil != err {
		return false, fault.NewIoError(path, err)
	}

	env, err := Open(path, ReadOnly, 0)
	if nil != err {
		return false, err
	}
	defer env.Close()

	version, err := getVersion(env.db)
	if nil != err {
		return false, mapError(path, err)
	}
	return version > 0, nil
}

// Size - approximate on-disk size of all tables
func (e *Environment) Size() (uint64, error) {
	sizes, err := e.db.SizeOf([]ldb_util.Range{wholeRange})
	if nil != err {
		return 0, mapError(e.path, err)
	}
	return uint64(sizes.Sum()), nil
}

// return the stored version, zero if none
func getVersion(db *leveldb.DB) (int, error) {
	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return 0, nil
	} else if nil != err {
		return 0, err
	}

	if 4 != len(versionValue) {
		return 0, fmt.Errorf("%w: version length: expected: %d  actual: %d", fault.ErrCorruptEnvironment, 4, len(versionValue))
	}

	return int(binary.BigEndian.Uint32(versionValue)), nil
}

func putVersion(db *leveldb.DB, version int) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, uint32(version))

	return db.Put(versionKey, v, &ldb_opt.WriteOptions{Sync: true})
}

// convert store errors to the error classes used by callers
func mapError(path string, err error) error {
	switch {
	case nil == err:
		return nil
	case fault.IsErrCorrupt(err):
		return err
	case ldb_errors.IsCorrupted(err):
		return fmt.Errorf("%w: %s: %s", fault.ErrCorruptEnvironment, path, err)
	default:
		return fault.NewIoError(path, err)
	}
}
