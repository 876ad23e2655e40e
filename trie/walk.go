// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package trie

import (
	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/record"
	"github.com/bitmark-inc/bitmark-dbutils/storage"
	"github.com/bitmark-inc/logger"
)

// VisitFunc - called once for every distinct node reached
type VisitFunc func(hash digest.Digest, value []byte, node record.Node) error

// MissingFunc - called for a referenced node that is absent
//
// returning nil continues the walk without that subtree
type MissingFunc func(parent digest.Digest, hash digest.Digest) error

// InvalidFunc - called for a stored node that cannot be decoded
//
// returning nil continues the walk without that subtree
type InvalidFunc func(hash digest.Digest, value []byte, err error) error

// Walker - depth first traversal of the trie table
//
// the mark set is shared by successive walks so nodes common to
// several roots are fetched once
type Walker struct {
	log     *logger.L
	reader  storage.Reader
	table   *storage.Table
	visited Set
	missing int
	invalid int

	Missing MissingFunc
	Invalid InvalidFunc
}

type edge struct {
	parent digest.Digest
	hash   digest.Digest
}

// New - create a walker over the trie table of a reader
func New(reader storage.Reader) *Walker {
	return &Walker{
		log:     logger.New("trie"),
		reader:  reader,
		table:   storage.Pool.TrieNodes,
		visited: NewSet(),
	}
}

// Walk - traverse all nodes reachable from root not already visited
//
// without a Missing handler an absent node stops the walk with a
// *MissingNodeError; without an Invalid handler an undecodable node
// stops it with an *InvalidNodeError
func (w *Walker) Walk(root digest.Digest, visit VisitFunc) error {

	start := w.visited.Len()
	stack := []edge{{hash: root}}

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !w.visited.Add(e.hash) {
			continue
		}

		value, err := w.reader.Get(w.table, e.hash[:])
		if nil != err {
			return err
		}

		if nil == value {
			w.missing += 1
			if nil == w.Missing {
				return &MissingNodeError{Parent: e.parent, Hash: e.hash}
			}
			if err := w.Missing(e.parent, e.hash); nil != err {
				return err
			}
			continue
		}

		node, err := record.DecodeTrieNode(value)
		if nil != err {
			w.invalid += 1
			if nil == w.Invalid {
				return &InvalidNodeError{Hash: e.hash, Err: err}
			}
			if err := w.Invalid(e.hash, value, err); nil != err {
				return err
			}
			continue
		}

		if nil != visit {
			if err := visit(e.hash, value, node); nil != err {
				return err
			}
		}

		// push in reverse so children are visited in index order
		children := node.Children()
		for i := len(children) - 1; i >= 0; i -= 1 {
			if !w.visited.Has(children[i]) {
				stack = append(stack, edge{parent: e.hash, hash: children[i]})
			}
		}
	}

	w.log.Debugf("root: %s  new nodes: %d", root, w.visited.Len()-start)
	return nil
}

// Visited - every hash reached so far, including absent and undecodable ones
func (w *Walker) Visited() Set {
	return w.visited
}

// MissingCount - absent nodes met so far
func (w *Walker) MissingCount() int {
	return w.missing
}

// InvalidCount - undecodable nodes met so far
func (w *Walker) InvalidCount() int {
	return w.invalid
}

// Walk - traverse one root with a fresh mark set
func Walk(reader storage.Reader, root digest.Digest, visit VisitFunc) (Set, error) {
	w := New(reader)
	err := w.Walk(root, visit)
	return w.Visited(), err
}
