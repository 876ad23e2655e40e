// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progress

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/logger"
)

// DefaultInterval - minimum time between progress log lines
const DefaultInterval = 10 * time.Second

// Meter - counts processed items and logs at a bounded rate
//
// Add may be called from several goroutines
type Meter struct {
	count   uint64 // atomic, keep first for alignment
	log     *logger.L
	name    string
	limiter *rate.Limiter
	start   time.Time
}

// New - create a meter logging to the given channel no more often than interval
func New(log *logger.L, name string, interval time.Duration) *Meter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Meter{
		log:     log,
		name:    name,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		start:   time.Now(),
	}
}

// Add - count n more items
func (m *Meter) Add(n uint64) {
	total := atomic.AddUint64(&m.count, n)
	if m.limiter.Allow() {
		m.log.Infof("%s: %d  elapsed: %s", m.name, total, time.Since(m.start).Truncate(time.Second))
	}
}

// Count - items so far
func (m *Meter) Count() uint64 {
	return atomic.LoadUint64(&m.count)
}

// Done - log the final total
func (m *Meter) Done() {
	m.log.Infof("%s: finished: %d  elapsed: %s", m.name, m.Count(), time.Since(m.start).Truncate(time.Millisecond))
}
