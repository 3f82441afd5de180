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

// Primitive is the minimal set of operations a backend must implement
// natively. Base turns any Primitive into a full Adapter by deriving the
// compound operations (CAS, append/prepend, partial-value access,
// insert-ex, batch insertion, stats, TTL sentinel handling) on top of it.
// This is where spec §9's "polymorphism over backends... a record of
// function pointers (or an interface/trait)" lives: Primitive is the part
// that genuinely differs per engine; Adapter (derived by Base) is the
// uniform vtable callers see.
//
// RawGet and RawIterator/RawNext/RawPrev already apply the TTL read-path
// rule (an expired key reads as absent) and already reflect the adapter's
// own active-batch overlay, if it has one — that overlay algorithm is each
// adapter's business (trivial for btree/mmap via native or ad hoc
// transactions, the representative transaction-aware merge for LSM per
// spec §4.5).
type Primitive interface {
	Close() error
	Fsync() error

	Begin() error
	Commit() error
	Abort() error
	HasActiveBatch() bool

	// RawGet returns the live entry for key, or found=false if the key is
	// absent or its TTL has expired.
	RawGet(key uint64) (entry Entry, found bool, err error)
	// RawPut unconditionally upserts e. It does not alter any existing TTL
	// record for e.Key (only RawDelete/RawPersist touch TTL records).
	RawPut(e Entry) error
	// RawDelete removes the entry for key (a no-op, not an error, if
	// absent) and cascades deletion of any TTL record for key.
	RawDelete(key uint64) error
	// RawPhysicalExists reports whether key has a stored entry, ignoring
	// TTL expiry — used only to distinguish get-ttl's NONE and NOT_FOUND
	// sentinels.
	RawPhysicalExists(key uint64) (bool, error)

	MaxKey() (key uint64, ok bool, err error)
	MinKey() (key uint64, ok bool, err error)
	// RawNext returns the smallest live entry with key > k.
	RawNext(k uint64) (entry Entry, ok bool, err error)
	// RawPrev returns the largest live entry with key < k.
	RawPrev(k uint64) (entry Entry, ok bool, err error)
	RawIterator(lo, hi uint64, dir Direction) (Cursor, error)

	// RawRemoveRange deletes entries in [lo,hi] per the inclusive flags
	// and returns the count deleted. It is not required to cascade TTL
	// deletion (orphan TTL records are tolerated, per spec §4.4).
	RawRemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (deleted uint64, err error)

	KeyCount() (uint64, error)
	DataSize() (uint64, error)
	FileSizeBytes() (uint64, error)

	// CountRangeFast gives an adapter the chance to answer count-range
	// with an approximate fast path (spec §4.6). ok=false tells Base to
	// fall back to exhaustive iteration. The default Base behavior for a
	// Primitive that can't do this is to implement CountRangeFast as
	// `return 0, false, nil` via NoFastCount (embed it).
	CountRangeFast(lo, hi uint64) (count uint64, ok bool, err error)

	// RawSetExpire records key's absolute expiry timestamp. It must
	// return ErrNotFound if key has no live entry.
	RawSetExpire(key uint64, timestampMs int64) error
	// RawGetTTL reports the raw TTL-namespace record for key, if any.
	RawGetTTL(key uint64) (timestampMs int64, hasTTL bool, err error)
	// RawPersist removes key's TTL record, if any; a no-op otherwise.
	RawPersist(key uint64) error
	// RawExpireScan reaps (deletes both the TTL record and the entry) all
	// TTL records expired as of nowMs, honoring the maxKeys cap (0 = no
	// cap), and returns the count reaped.
	RawExpireScan(nowMs int64, maxKeys uint64) (reaped uint64, err error)
}

// NoFastCount is embedded by adapters (btreestore, mmapstore) that have no
// approximate counting path, so they satisfy Primitive's CountRangeFast
// without writing the method themselves.
type NoFastCount struct{}

func (NoFastCount) CountRangeFast(lo, hi uint64) (uint64, bool, error) {
	return 0, false, nil
}
