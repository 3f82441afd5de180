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

package mmapstore

import (
	"sort"

	"github.com/mattsta/kvidxkit/kv"
)

// RawIterator merges the durable index with the active batch overlay (if
// any), materializing the result eagerly; the in-memory index makes this
// cheap, unlike the LSM adapter's segment-spanning equivalent.
func (s *Store) RawIterator(lo, hi uint64, dir kv.Direction) (kv.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[uint64]kv.Entry)
	s.index.AscendRange(indexEntry{key: lo}, indexEntry{key: hi + 1}, func(it indexEntry) bool {
		if s.liveLocked(it.key, false) {
			merged[it.key] = it.entry.Clone()
		}
		return true
	})
	if hi == ^uint64(0) {
		// AscendRange's exclusive upper bound can't express "to the max
		// key inclusive" via hi+1 (it would wrap to 0); re-scan the tail.
		s.index.AscendGreaterOrEqual(indexEntry{key: lo}, func(it indexEntry) bool {
			if it.key >= lo && s.liveLocked(it.key, false) {
				merged[it.key] = it.entry.Clone()
			}
			return true
		})
	}
	if s.batch != nil {
		s.batch.Ascend(lo, func(item kv.OverlayItem) bool {
			if item.Key > hi {
				return false
			}
			if item.Tombstone {
				delete(merged, item.Key)
				return true
			}
			if s.liveLocked(item.Key, true) {
				merged[item.Key] = item.Entry.Clone()
			} else {
				delete(merged, item.Key)
			}
			return true
		})
	}

	entries := make([]kv.Entry, 0, len(merged))
	for _, e := range merged {
		entries = append(entries, e)
	}
	sortEntries(entries, dir)
	return kv.NewSliceCursor(entries), nil
}

func sortEntries(entries []kv.Entry, dir kv.Direction) {
	sort.Slice(entries, func(i, j int) bool {
		if dir == kv.Reverse {
			return entries[i].Key > entries[j].Key
		}
		return entries[i].Key < entries[j].Key
	})
}
