// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package extract - copy tables between environments
//
// records are copied in key order and committed in bounded batches,
// so an interrupted export can be resumed from the last key that the
// destination itself holds
package extract
