// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// supported block versions
const (
	BlockVersion1 = 1 // without era
	BlockVersion2 = 2 // adds era
)

// Block - the unpacked block record
//
// packed layout (integers little endian):
//   version   uint16
//   height    uint64
//   parent    32 byte hash (all zero for genesis)
//   stateRoot 32 byte hash
//   timestamp uint64
//   era       uint64       (version 2 only)
//   body      count(varint) ++ bytes
type Block struct {
	Version   uint16        `json:"version"`
	Height    uint64        `json:"height"`
	Parent    digest.Digest `json:"parent"`
	StateRoot digest.Digest `json:"stateRoot"`
	Timestamp uint64        `json:"timestamp"`
	Era       uint64        `json:"era"`
	Body      []byte        `json:"-"`
}

// IsGenesis - a genesis block has no parent
func (b *Block) IsGenesis() bool {
	return 0 == b.Height && b.Parent.IsZero()
}

// Pack - convert to the stored byte form
func (b *Block) Pack() ([]byte, error) {
	if BlockVersion1 != b.Version && BlockVersion2 != b.Version {
		return nil, fault.ErrUnsupportedRecordVers
	}

	buffer := make([]byte, 0, 2+8+2*digest.Length+16+len(b.Body)+maxVarintBytes)
	buffer = appendUint16(buffer, b.Version)
	buffer = appendUint64(buffer, b.Height)
	buffer = append(buffer, b.Parent[:]...)
	buffer = append(buffer, b.StateRoot[:]...)
	buffer = appendUint64(buffer, b.Timestamp)
	if BlockVersion2 == b.Version {
		buffer = appendUint64(buffer, b.Era)
	}
	buffer = appendBytes(buffer, b.Body)
	return buffer, nil
}

// Hash - the block hash, digest of the packed record
func (b *Block) Hash() (digest.Digest, error) {
	packed, err := b.Pack()
	if nil != err {
		return digest.Digest{}, err
	}
	return digest.NewDigest(packed), nil
}

// DecodeBlock - unpack a block record
func DecodeBlock(buffer []byte) (*Block, error) {
	u := &unpacker{buffer: buffer}
	b := &Block{}

	var err error
	if b.Version, err = u.getUint16(); nil != err {
		return nil, err
	}
	if BlockVersion1 != b.Version && BlockVersion2 != b.Version {
		return nil, fmt.Errorf("%w: block version: %d", fault.ErrUnsupportedRecordVers, b.Version)
	}
	if b.Height, err = u.getUint64(); nil != err {
		return nil, err
	}
	if b.Parent, err = u.getDigest(); nil != err {
		return nil, err
	}
	if b.StateRoot, err = u.getDigest(); nil != err {
		return nil, err
	}
	if b.Timestamp, err = u.getUint64(); nil != err {
		return nil, err
	}
	if BlockVersion2 == b.Version {
		if b.Era, err = u.getUint64(); nil != err {
			return nil, err
		}
	}
	if b.Body, err = u.getBytes(); nil != err {
		return nil, err
	}
	if err = u.done(); nil != err {
		return nil, err
	}
	return b, nil
}
