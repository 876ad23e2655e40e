// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"errors"
	"time"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// CheckOptions - control a record by record check
type CheckOptions struct {
	Mode Mode

	// number of leading entries of each table to skip
	StartAt uint64

	ProgressInterval time.Duration
}

// Check - decode every record of the given tables, all tables if none given
//
// content addressed tables also have the digest of each value
// compared with its key
func Check(reader storage.Reader, tables []*storage.Table, options CheckOptions) (*Report, error) {
	log := logger.New("check")
	report := newReport(options.Mode)

	if 0 == len(tables) {
		tables = storage.Tables()
	}
	for _, table := range tables {
		decode, err := decoderFor(table)
		if nil != err {
			return report, err
		}

		meter := progress.New(log, table.Name()+" records checked", options.ProgressInterval)

		skip := options.StartAt
		err = storage.NewCursor(reader, table).Map(func(key []byte, value []byte) error {
			if skip > 0 {
				skip -= 1
				return nil
			}
			report.RecordsChecked += 1
			meter.Add(1)

			var hash digest.Digest
			if err := digest.FromBytes(&hash, key); nil != err {
				return report.add(Finding{
					Kind:   UndecodableRecord,
					Table:  table.Name(),
					Key:    digest.NewDigest(key),
					Detail: "invalid key length",
				})
			}

			if err := decode(value); nil != err {
				log.Warnf("%s: %s: %s", table.Name(), hash, err)
				return report.add(Finding{
					Kind:   UndecodableRecord,
					Table:  table.Name(),
					Key:    hash,
					Detail: err.Error(),
				})
			}

			// a deploy list is keyed by its block, not by its own content
			if table != storage.Pool.BlockDeploys {
				if actual := digest.NewDigest(value); actual != hash {
					return report.add(Finding{
						Kind:   HashMismatch,
						Table:  table.Name(),
						Key:    hash,
						Actual: actual,
					})
				}
			}
			return nil
		})
		meter.Done()

		if errors.Is(err, errStop) {
			return report, nil
		}
		if nil != err {
			return report, err
		}
	}

	log.Infof("tables: %d  records: %d  findings: %d", len(tables), report.RecordsChecked, len(report.Findings))
	return report, nil
}

func decoderFor(table *storage.Table) (func([]byte) error, error) {
	switch table {
	case storage.Pool.Blocks:
		return func(b []byte) error { _, err := record.DecodeBlock(b); return err }, nil
	case storage.Pool.BlockDeploys:
		return func(b []byte) error { _, err := record.DecodeDeployList(b); return err }, nil
	case storage.Pool.Deploys:
		return func(b []byte) error { _, err := record.DecodeDeploy(b); return err }, nil
	case storage.Pool.TrieNodes:
		return func(b []byte) error { _, err := record.DecodeTrieNode(b); return err }, nil
	default:
		return nil, fault.ErrUnknownTable
	}
}
