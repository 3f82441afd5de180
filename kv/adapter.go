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

// Adapter is the full uniform contract of spec §4.1 — the vtable a Handle
// binds to at open time. Backends never implement it by hand; they
// implement Primitive and get Adapter for free from Base.
type Adapter interface {
	Close() error
	Fsync() error

	Begin() error
	Commit() error
	Abort() error

	Get(key uint64) (Entry, error)
	Exists(key uint64) (bool, error)
	ExistsDual(key, term uint64) (bool, error)
	Insert(key, term, cmd uint64, data []byte) error
	InsertEx(key, term, cmd uint64, data []byte, cond InsertCondition) error
	Remove(key uint64) error

	MaxKey() (uint64, bool, error)
	MinKey() (uint64, bool, error)
	Next(k uint64) (Entry, bool, error)
	Prev(k uint64) (Entry, bool, error)
	Iterator(lo, hi uint64, dir Direction) (Cursor, error)

	RemoveAfterInclusive(k uint64) (uint64, error)
	RemoveBeforeInclusive(k uint64) (uint64, error)
	RemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (uint64, error)

	GetAndSet(key, newTerm, newCmd uint64, newData []byte) (Entry, error)
	GetAndRemove(key uint64) (Entry, error)
	CompareAndSwap(key uint64, expected []byte, newTerm, newCmd uint64, newData []byte) (CASOutcome, error)
	Append(key, term, cmd uint64, suffix []byte) (uint64, error)
	Prepend(key, term, cmd uint64, prefix []byte) (uint64, error)

	GetValueRange(key uint64, offset, length uint64) ([]byte, error)
	SetValueRange(key uint64, offset uint64, data []byte) (uint64, error)

	InsertBatch(entries []Entry) (uint64, error)
	InsertBatchEx(entries []Entry, predicate func(i int, e Entry) bool) (uint64, error)

	KeyCount() (uint64, error)
	DataSize() (uint64, error)
	Stats() (Stats, error)

	CountRange(lo, hi uint64) (uint64, error)
	ExistsInRange(lo, hi uint64) (bool, error)

	SetExpire(key uint64, ttlMs int64) error
	SetExpireAt(key uint64, timestampMs int64) error
	GetTTL(key uint64) (int64, error)
	Persist(key uint64) error
	ExpireScan(maxKeys uint64) (uint64, error)
}
