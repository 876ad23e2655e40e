// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trie

import (
	"sort"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
)

// Set - hashes marked during a traversal
type Set map[digest.Digest]struct{}

// NewSet - create an empty set
func NewSet() Set {
	return make(Set)
}

// Add - mark a hash, returns false if it was already present
func (s Set) Add(d digest.Digest) bool {
	if _, ok := s[d]; ok {
		return false
	}
	s[d] = struct{}{}
	return true
}

// Has - check for a marked hash
func (s Set) Has(d digest.Digest) bool {
	_, ok := s[d]
	return ok
}

// Len - number of marked hashes
func (s Set) Len() int {
	return len(s)
}

// Keys - the marked hashes in store key order
func (s Set) Keys() []digest.Digest {
	keys := make([]digest.Digest, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys
}
