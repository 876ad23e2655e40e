// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"fmt"
	"sort"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// NodeTag - first byte of a packed trie node
type NodeTag byte

// supported node kinds
const (
	LeafTag      NodeTag = 0
	BranchTag    NodeTag = 1
	ExtensionTag NodeTag = 2
)

func (t NodeTag) String() string {
	switch t {
	case LeafTag:
		return "leaf"
	case BranchTag:
		return "branch"
	case ExtensionTag:
		return "extension"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// Node - a decoded trie node
//
// the key of a node in the trie table is HashOf(Pack())
type Node interface {
	Tag() NodeTag
	Children() []digest.Digest
	Pack() []byte
}

// Leaf - tag ++ key(varint count ++ bytes) ++ value(varint count ++ bytes)
type Leaf struct {
	Key   []byte
	Value []byte
}

// BranchEntry - one child of a branch
type BranchEntry struct {
	Index byte
	Child digest.Digest
}

// Branch - tag ++ count(varint) ++ [ index ++ child hash ]
//
// indexes are strictly increasing
type Branch struct {
	Entries []BranchEntry
}

// Extension - tag ++ affix(varint count ++ bytes) ++ child hash
type Extension struct {
	Affix []byte
	Child digest.Digest
}

// HashOf - the content hash of a packed node
func HashOf(packed []byte) digest.Digest {
	return digest.NewDigest(packed)
}

// NewBranch - make a branch from its entries in any order
func NewBranch(entries ...BranchEntry) *Branch {
	e := make([]BranchEntry, len(entries))
	copy(e, entries)
	sort.Slice(e, func(i, j int) bool { return e[i].Index < e[j].Index })
	return &Branch{Entries: e}
}

func (l *Leaf) Tag() NodeTag              { return LeafTag }
func (l *Leaf) Children() []digest.Digest { return nil }

func (l *Leaf) Pack() []byte {
	buffer := make([]byte, 0, 1+2*maxVarintBytes+len(l.Key)+len(l.Value))
	buffer = append(buffer, byte(LeafTag))
	buffer = appendBytes(buffer, l.Key)
	return appendBytes(buffer, l.Value)
}

func (b *Branch) Tag() NodeTag { return BranchTag }

func (b *Branch) Children() []digest.Digest {
	children := make([]digest.Digest, len(b.Entries))
	for i, e := range b.Entries {
		children[i] = e.Child
	}
	return children
}

func (b *Branch) Pack() []byte {
	buffer := make([]byte, 0, 1+maxVarintBytes+len(b.Entries)*(1+digest.Length))
	buffer = append(buffer, byte(BranchTag))
	buffer = appendVarint(buffer, uint64(len(b.Entries)))
	for _, e := range b.Entries {
		buffer = append(buffer, e.Index)
		buffer = append(buffer, e.Child[:]...)
	}
	return buffer
}

func (x *Extension) Tag() NodeTag { return ExtensionTag }

func (x *Extension) Children() []digest.Digest {
	return []digest.Digest{x.Child}
}

func (x *Extension) Pack() []byte {
	buffer := make([]byte, 0, 1+maxVarintBytes+len(x.Affix)+digest.Length)
	buffer = append(buffer, byte(ExtensionTag))
	buffer = appendBytes(buffer, x.Affix)
	return append(buffer, x.Child[:]...)
}

// DecodeTrieNode - unpack a trie node
func DecodeTrieNode(buffer []byte) (Node, error) {
	u := &unpacker{buffer: buffer}

	tag, err := u.getByte()
	if nil != err {
		return nil, err
	}

	var node Node
	switch NodeTag(tag) {

	case LeafTag:
		leaf := &Leaf{}
		if leaf.Key, err = u.getBytes(); nil != err {
			return nil, err
		}
		if leaf.Value, err = u.getBytes(); nil != err {
			return nil, err
		}
		node = leaf

	case BranchTag:
		count, err := u.getVarint()
		if nil != err {
			return nil, err
		}
		if 0 == count || count > 256 {
			return nil, fmt.Errorf("%w: branch entries: %d", fault.ErrBranchEntryCount, count)
		}
		branch := &Branch{
			Entries: make([]BranchEntry, 0, count),
		}
		for i := uint64(0); i < count; i += 1 {
			index, err := u.getByte()
			if nil != err {
				return nil, err
			}
			if i > 0 && index <= branch.Entries[i-1].Index {
				return nil, fault.ErrBranchOrder
			}
			child, err := u.getDigest()
			if nil != err {
				return nil, err
			}
			branch.Entries = append(branch.Entries, BranchEntry{Index: index, Child: child})
		}
		node = branch

	case ExtensionTag:
		extension := &Extension{}
		if extension.Affix, err = u.getBytes(); nil != err {
			return nil, err
		}
		if extension.Child, err = u.getDigest(); nil != err {
			return nil, err
		}
		node = extension

	default:
		return nil, fmt.Errorf("%w: %d", fault.ErrUnknownNodeTag, tag)
	}

	if err = u.done(); nil != err {
		return nil, err
	}
	return node, nil
}
