// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package fault - error instances
//
// Each error belongs to a class (busy, corrupt, exists, invalid, not
// found, process, record or i/o) so callers can test the class of a
// wrapped error with the IsErrXXX functions and map it to an exit
// status, while still comparing single instances with errors.Is
package fault
