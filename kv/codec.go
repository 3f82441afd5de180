// Copyright 2026 The kvidxkit Authors
// This file is part of kvidxkit.
//
// kvidxkit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvidxkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvidxkit. If not, see <http://www.gnu.org/licenses/>.

package kv

import "encoding/binary"

// valueHeaderLen is the fixed (term, cmd) prefix of every packed value.
const valueHeaderLen = 16

// PackValue lays out one entry's value buffer as specified:
//
//	offset 0:  term (u64)
//	offset 8:  cmd  (u64)
//	offset 16: data
//
// The spec calls this "native endianness"; this implementation fixes
// little-endian so the on-disk format is deterministic across the
// little-endian machines this repository targets (see DESIGN.md).
func PackValue(term, cmd uint64, data []byte) []byte {
	buf := make([]byte, valueHeaderLen+len(data))
	binary.LittleEndian.PutUint64(buf[0:8], term)
	binary.LittleEndian.PutUint64(buf[8:16], cmd)
	copy(buf[16:], data)
	return buf
}

// UnpackValue reverses PackValue. Truncated inputs (len < 8, len < 16)
// tolerate missing metadata by returning zero for the slots that don't fit,
// per spec §4.3.
func UnpackValue(buf []byte) (term, cmd uint64, data []byte) {
	if len(buf) >= 8 {
		term = binary.LittleEndian.Uint64(buf[0:8])
	}
	if len(buf) >= 16 {
		cmd = binary.LittleEndian.Uint64(buf[8:16])
		data = buf[16:]
	} else if len(buf) > 8 {
		// Between 9 and 15 bytes: term fits, cmd/data do not.
		data = nil
	}
	return term, cmd, data
}

// EncodeKey renders k as 8-byte big-endian, giving lexicographic byte
// ordering that matches numeric ordering — the layout required by the
// byte-string-keyed engines (mmap, LSM).
func EncodeKey(k uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k)
	return b
}

// DecodeKey reverses EncodeKey. Truncated input (e.g. a malformed tombstone
// replay) decodes the bytes present and zero-fills the rest.
func DecodeKey(b []byte) uint64 {
	var full [8]byte
	copy(full[:], b)
	return binary.BigEndian.Uint64(full[:])
}

// ValueLen returns the logical length of the data payload inside a packed
// value buffer without a full unpack (used by the btree adapter's
// DataSize).
func ValueLen(packed []byte) int {
	if len(packed) <= valueHeaderLen {
		return 0
	}
	return len(packed) - valueHeaderLen
}
