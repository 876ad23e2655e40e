// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package extract

import (
	"encoding/hex"
	"time"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// default batch bounds
const (
	DefaultBatchRecords = 10000
	DefaultBatchBytes   = 64 * 1024 * 1024
)

// Options - batching and resumption of a table copy
type Options struct {
	BatchRecords     int
	BatchBytes       int
	Resume           bool
	MaxSize          uint64 // size limit of a created destination
	ProgressInterval time.Duration

	// closing this stops the copy after the current batch
	Shutdown <-chan struct{}
}

// TableResult - the outcome of copying one table
type TableResult struct {
	Table   string `json:"table"`
	Records uint64 `json:"records"`
	Bytes   uint64 `json:"bytes"`
	Batches int    `json:"batches"`
	Resumed bool   `json:"resumed"`
	LastKey string `json:"lastKey"`
}

// Result - the outcome of copying a set of tables
type Result struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Tables      []*TableResult `json:"tables"`
}

func (o Options) bounds() (int, int, error) {
	records := o.BatchRecords
	bytes := o.BatchBytes
	if records < 0 || bytes < 0 {
		return 0, 0, fault.ErrInvalidBatchSize
	}
	if 0 == records {
		records = DefaultBatchRecords
	}
	if 0 == bytes {
		bytes = DefaultBatchBytes
	}
	return records, bytes, nil
}

// CopyTable - copy every record of a table from source into dest
//
// with resume set, copying starts after the highest key dest already
// holds for the table; each batch is committed before the next begins
func CopyTable(source storage.Reader, dest *storage.Environment, table *storage.Table, options Options) (*TableResult, error) {
	log := logger.New("extract")

	maxRecords, maxBytes, err := options.bounds()
	if nil != err {
		return nil, err
	}

	result := &TableResult{
		Table: table.Name(),
	}

	cursor := storage.NewCursor(source, table)

	if options.Resume {
		rd, err := dest.BeginRead()
		if nil != err {
			return nil, err
		}
		last, err := storage.Last(rd, table)
		rd.Release()
		if nil != err {
			return nil, err
		}
		if nil != last {
			log.Infof("table: %s  resume after: %x", table, last.Key)
			cursor.SeekAfter(last.Key)
			result.Resumed = true
			result.LastKey = hex.EncodeToString(last.Key)
		}
	}

	meter := progress.New(log, table.Name()+" records copied", options.ProgressInterval)
	defer meter.Done()

	var trx *storage.WriteTransaction
	var pending []byte

	commit := func() error {
		n := trx.Len()
		size := trx.Bytes()
		err := trx.Commit()
		trx = nil
		if nil != err {
			return err
		}
		result.Records += uint64(n)
		result.Bytes += uint64(size)
		result.Batches += 1
		result.LastKey = hex.EncodeToString(pending)
		meter.Add(uint64(n))
		return nil
	}

	err = cursor.Map(func(key []byte, value []byte) error {
		if nil == trx {
			var err error
			if trx, err = dest.BeginWrite(); nil != err {
				return err
			}
		}
		trx.Put(table, key, value)
		pending = key

		if trx.Len() >= maxRecords || trx.Bytes() >= maxBytes {
			if err := commit(); nil != err {
				return err
			}
			select {
			case <-options.Shutdown:
				return fault.ErrAborted
			default:
			}
		}
		return nil
	})
	if nil == err && nil != trx {
		err = commit()
	}
	if nil != trx {
		trx.Abort()
	}
	if nil != err {
		log.Errorf("table: %s  stopped after: %d records  error: %s", table, result.Records, err)
		return result, err
	}

	log.Infof("table: %s  records: %d  batches: %d", table, result.Records, result.Batches)
	return result, nil
}

// copy each table in turn, all tables when none are given
func copyTables(source storage.Reader, dest *storage.Environment, tables []*storage.Table, options Options, result *Result) error {
	if 0 == len(tables) {
		tables = storage.Tables()
	}
	for _, table := range tables {
		r, err := CopyTable(source, dest, table, options)
		if nil != r {
			result.Tables = append(result.Tables, r)
		}
		if nil != err {
			return err
		}
	}
	return nil
}
