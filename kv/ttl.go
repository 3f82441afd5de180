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

import "time"

// TTLPrefix is the reserved 4-byte prefix for the TTL namespace in
// byte-string-keyed engines, chosen (per spec §4.4) to sort below any
// numeric entry key: "\x00TTL" followed by the 8-byte big-endian key.
var TTLPrefix = [4]byte{0x00, 'T', 'T', 'L'}

// EncodeTTLKey builds the TTL-namespace key for a given entry key, for
// adapters that keep TTL records in the same keyspace as entries. None of
// the adapters in this module calls it: mmap and LSM keep TTL records in an
// in-memory map persisted through their own logs, and btree (mdbx) uses a
// second DBI.
func EncodeTTLKey(key uint64) []byte {
	b := make([]byte, 4+8)
	copy(b[0:4], TTLPrefix[:])
	copy(b[4:], EncodeKey(key))
	return b
}

// DecodeTTLKey extracts the entry key from a TTL-namespace key, returning
// ok=false if b isn't shaped like a TTL-namespace key.
func DecodeTTLKey(b []byte) (key uint64, ok bool) {
	if len(b) != 12 {
		return 0, false
	}
	var prefix [4]byte
	copy(prefix[:], b[0:4])
	if prefix != TTLPrefix {
		return 0, false
	}
	return DecodeKey(b[4:]), true
}

// Clock abstracts wall-clock time so expiry logic is deterministic in
// tests. NowMs returns milliseconds since the Unix epoch.
type Clock interface {
	NowMs() int64
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) NowMs() int64 { return time.Now().UnixMilli() }

// IsExpired reports whether a TTL timestamp (absolute ms since epoch) has
// elapsed as of nowMs. A zero-or-negative remaining duration is expired,
// matching spec's "0 means expired but not yet reaped".
func IsExpired(nowMs, expireAtMs int64) bool {
	return expireAtMs <= nowMs
}

// TTLRemainingMs computes get-ttl's sentinel-aware remaining-milliseconds
// value given an absolute expiry timestamp. The sentinel values themselves
// (NONE=-1, NOT_FOUND=-2) are applied by callers that know whether the key
// or its TTL record exist; this helper only handles the "has a TTL record"
// case.
func TTLRemainingMs(nowMs, expireAtMs int64) int64 {
	remaining := expireAtMs - nowMs
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TTL sentinel values returned by get-ttl.
const (
	TTLNone     int64 = -1
	TTLNotFound int64 = -2
)
