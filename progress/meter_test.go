// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progress_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/bitmark-inc/logger"
	"github.com/stretchr/testify/assert"

	"github.com/bitmark-inc/bitmark-dbutils/fixture"
	"github.com/bitmark-inc/bitmark-dbutils/progress"
)

func TestMain(m *testing.M) {
	dir := fixture.SetupTestLogger()
	rc := m.Run()
	fixture.TeardownTestLogger(dir)
	os.Exit(rc)
}

func TestMeterConcurrentAdd(t *testing.T) {
	m := progress.New(logger.New("test"), "items", time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j += 1 {
				m.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(1000), m.Count(), "all additions counted")
}

func TestMeter(t *testing.T) {
	m := progress.New(logger.New("test"), "records", time.Hour)
	m.Add(3)
	m.Add(4)
	assert.Equal(t, uint64(7), m.Count(), "count")
	m.Done()

	m = progress.New(logger.New("test"), "records", 0)
	assert.Equal(t, uint64(0), m.Count(), "default interval")
}
