// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package inspect

import (
	"bytes"
	"encoding/hex"

	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// maximum keys of each kind kept in a table comparison
const maxReportedKeys = 100

// TableComparison - differences of one table between two environments
type TableComparison struct {
	Name      string   `json:"name"`
	Records   uint64   `json:"records"`
	Missing   uint64   `json:"missing"`
	Different uint64   `json:"different"`
	Extra     uint64   `json:"extra"`
	Keys      []string `json:"keys,omitempty"`
}

// Equal - true if both sides hold exactly the same records
func (t *TableComparison) Equal() bool {
	return 0 == t.Missing && 0 == t.Different && 0 == t.Extra
}

// Compare - match every record of src against dst
//
// records present only in dst are counted as extra
func Compare(src storage.Reader, dst storage.Reader, tables []*storage.Table) ([]*TableComparison, error) {
	log := logger.New("compare")

	if 0 == len(tables) {
		tables = storage.Tables()
	}

	results := make([]*TableComparison, 0, len(tables))
	for _, table := range tables {
		r := &TableComparison{
			Name: table.Name(),
		}
		note := func(key []byte) {
			if len(r.Keys) < maxReportedKeys {
				r.Keys = append(r.Keys, hex.EncodeToString(key))
			}
		}

		err := storage.NewCursor(src, table).Map(func(key []byte, value []byte) error {
			r.Records += 1
			data, err := dst.Get(table, key)
			if nil != err {
				return err
			}
			if nil == data {
				log.Debugf("table: %s  missing key: %x", table, key)
				r.Missing += 1
				note(key)
			} else if !bytes.Equal(value, data) {
				log.Debugf("table: %s  key: %x  value: %x  expected: %x", table, key, data, value)
				r.Different += 1
				note(key)
			}
			return nil
		})
		if nil != err {
			return results, err
		}

		err = storage.NewCursor(dst, table).Map(func(key []byte, value []byte) error {
			found, err := src.Has(table, key)
			if nil != err {
				return err
			}
			if !found {
				r.Extra += 1
				note(key)
			}
			return nil
		})
		if nil != err {
			return results, err
		}

		log.Infof("table: %s  records: %d  missing: %d  different: %d  extra: %d", table, r.Records, r.Missing, r.Different, r.Extra)
		results = append(results, r)
	}
	return results, nil
}
