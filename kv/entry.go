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

// Entry is the unit of storage: the quadruple (key, term, cmd, data). term
// and cmd are opaque to the store and round-trip verbatim. Equality is by
// key; ordering is by key ascending.
type Entry struct {
	Key  uint64
	Term uint64
	Cmd  uint64
	Data []byte
}

// Clone returns an Entry whose Data does not alias e.Data.
func (e Entry) Clone() Entry {
	if e.Data == nil {
		return e
	}
	data := make([]byte, len(e.Data))
	copy(data, e.Data)
	e.Data = data
	return e
}

// Direction selects forward (ascending) or reverse (descending) iteration.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// InsertCondition governs insert-ex's replace-vs-fail semantics.
type InsertCondition int

const (
	// Always unconditionally replaces any existing entry.
	Always InsertCondition = iota
	// IfNotExists fails with ErrDuplicateKey when the key is present and
	// live (an expired key counts as absent). Equivalent to Insert.
	IfNotExists
	// IfExists fails with ErrConditionFailed when the key is absent.
	IfExists
)

// CASOutcome is the three-way result of CompareAndSwap.
type CASOutcome int

const (
	CASNotFound CASOutcome = iota
	CASNoMatch
	CASSwapped
)

func (o CASOutcome) String() string {
	switch o {
	case CASNotFound:
		return "not-found"
	case CASNoMatch:
		return "no-match"
	case CASSwapped:
		return "swapped"
	default:
		return "unknown"
	}
}

// Stats aggregates the statistics operations of spec §4.1.
type Stats struct {
	KeyCount  uint64
	MinKey    uint64
	HasMinKey bool
	MaxKey    uint64
	HasMaxKey bool
	DataSize  uint64
	FileSize  uint64 // 0 when the backend has no meaningful notion of it
}
