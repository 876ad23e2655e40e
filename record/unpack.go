// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"encoding/binary"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// sequential reader over a packed record
type unpacker struct {
	buffer []byte
	n      int
}

func (u *unpacker) take(count int) ([]byte, error) {
	if count < 0 || len(u.buffer)-u.n < count {
		return nil, fault.ErrTruncatedRecord
	}
	b := u.buffer[u.n : u.n+count]
	u.n += count
	return b, nil
}

func (u *unpacker) getByte() (byte, error) {
	b, err := u.take(1)
	if nil != err {
		return 0, err
	}
	return b[0], nil
}

func (u *unpacker) getUint16() (uint16, error) {
	b, err := u.take(2)
	if nil != err {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (u *unpacker) getUint64() (uint64, error) {
	b, err := u.take(8)
	if nil != err {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (u *unpacker) getDigest() (digest.Digest, error) {
	var d digest.Digest
	b, err := u.take(digest.Length)
	if nil != err {
		return d, err
	}
	copy(d[:], b)
	return d, nil
}

func (u *unpacker) getVarint() (uint64, error) {
	value, count := readVarint(u.buffer[u.n:])
	if 0 == count {
		return 0, fault.ErrTruncatedRecord
	}
	u.n += count
	return value, nil
}

// varint length followed by that many bytes, copied out
func (u *unpacker) getBytes() ([]byte, error) {
	length, err := u.getVarint()
	if nil != err {
		return nil, err
	}
	if length > uint64(len(u.buffer)-u.n) {
		return nil, fault.ErrTruncatedRecord
	}
	b, err := u.take(int(length))
	if nil != err {
		return nil, err
	}
	return append([]byte{}, b...), nil
}

// the whole record must be consumed
func (u *unpacker) done() error {
	if u.n != len(u.buffer) {
		return fault.ErrTrailingData
	}
	return nil
}

func appendUint16(buffer []byte, value uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, value)
	return append(buffer, b...)
}

func appendUint64(buffer []byte, value uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, value)
	return append(buffer, b...)
}

func appendBytes(buffer []byte, data []byte) []byte {
	buffer = appendVarint(buffer, uint64(len(data)))
	return append(buffer, data...)
}
