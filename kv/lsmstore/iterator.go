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

package lsmstore

import (
	"sort"

	"github.com/mattsta/kvidxkit/kv"
)

// RawIterator walks the live-key bitmap for the range (already a merge of
// every layer, maintained incrementally by every mutation path) and
// resolves each candidate key through the same merge-read RawGet uses, so
// iteration and point lookups can never disagree about what's live.
func (s *Store) RawIterator(lo, hi uint64, dir kv.Direction) (kv.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []uint64
	s.liveKeys.Iterate(func(k uint64) bool {
		if k >= lo && k <= hi {
			keys = append(keys, k)
		}
		return k <= hi
	})
	if s.batch != nil {
		s.batch.Ascend(lo, func(item kv.OverlayItem) bool {
			if item.Key > hi {
				return false
			}
			keys = append(keys, item.Key)
			return true
		})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	keys = dedupe(keys)

	entries := make([]kv.Entry, 0, len(keys))
	for _, k := range keys {
		if e, found, _ := s.rawGetLocked(k); found {
			entries = append(entries, e.Clone())
		}
	}
	if dir == kv.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return kv.NewSliceCursor(entries), nil
}

func dedupe(keys []uint64) []uint64 {
	if len(keys) == 0 {
		return keys
	}
	out := keys[:1]
	for _, k := range keys[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}
