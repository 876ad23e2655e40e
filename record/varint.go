// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

// counts and lengths in packed records are varints: seven bits per
// byte, least significant group first, high bit set while more bytes
// follow; a ninth byte carries the top eight bits whole
const maxVarintBytes = 9

func appendVarint(buffer []byte, value uint64) []byte {
	for n := 1; n < maxVarintBytes && value >= 0x80; n += 1 {
		buffer = append(buffer, byte(value)|0x80)
		value >>= 7
	}
	return append(buffer, byte(value))
}

// value and bytes consumed, or 0, 0 if the buffer ends first
func readVarint(buffer []byte) (uint64, int) {
	value := uint64(0)
	for i, b := range buffer {
		if maxVarintBytes-1 == i {
			return value | uint64(b)<<56, maxVarintBytes
		}
		value |= uint64(b&0x7f) << (7 * uint(i))
		if b < 0x80 {
			return value, i + 1
		}
	}
	return 0, 0
}
