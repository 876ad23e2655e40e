// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trie

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// MissingNodeError - a referenced node is not in the trie table
//
// Parent is zero when the missing node is a root
type MissingNodeError struct {
	Parent digest.Digest
	Hash   digest.Digest
}

func (e *MissingNodeError) Error() string {
	if e.Parent.IsZero() {
		return fmt.Sprintf("missing root node: %s", e.Hash)
	}
	return fmt.Sprintf("missing node: %s  referenced by: %s", e.Hash, e.Parent)
}

func (e *MissingNodeError) Unwrap() error { return fault.ErrMissingNode }

// InvalidNodeError - a stored node could not be decoded
type InvalidNodeError struct {
	Hash digest.Digest
	Err  error
}

func (e *InvalidNodeError) Error() string {
	return fmt.Sprintf("undecodable node: %s: %s", e.Hash, e.Err)
}

func (e *InvalidNodeError) Unwrap() error { return e.Err }
