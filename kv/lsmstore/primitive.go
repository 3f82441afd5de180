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
	"math"
	"os"

	"github.com/mattsta/kvidxkit/kv"
)

// rawGetLocked is the §4.5 transaction-aware merge read: batch overlay,
// then memtable, then segments newest to oldest. A tombstone at any layer
// stops the search immediately — it shadows everything older.
func (s *Store) rawGetLocked(key uint64) (kv.Entry, bool, error) {
	if s.batch != nil {
		if e, present, tombstoned := s.batch.Get(key); present || tombstoned {
			if tombstoned {
				return kv.Entry{}, false, nil
			}
			return e, s.liveLocked(key), nil
		}
	}
	if e, present, tombstoned := s.memtable.Get(key); present || tombstoned {
		if tombstoned {
			return kv.Entry{}, false, nil
		}
		return e, s.liveLocked(key), nil
	}
	for _, seg := range s.segments {
		if !seg.mightContain(key) {
			continue
		}
		if seg.tombstones[key] {
			return kv.Entry{}, false, nil
		}
		if e, ok := seg.entries[key]; ok {
			return e, s.liveLocked(key), nil
		}
	}
	return kv.Entry{}, false, nil
}

func (s *Store) liveLocked(key uint64) bool {
	ts, has := s.ttl[key]
	if !has {
		return true
	}
	return !kv.IsExpired(s.clockImpl.NowMs(), ts)
}

func (s *Store) RawGet(key uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, found, err := s.rawGetLocked(key)
	if found {
		return e.Clone(), true, err
	}
	return e, found, err
}

func (s *Store) RawPut(e kv.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.Put(e)
		return nil
	}
	return s.applyPutLocked(e)
}

func (s *Store) RawDelete(key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.Delete(key)
		return nil
	}
	return s.applyDeleteLocked(key)
}

func (s *Store) RawPhysicalExists(key uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		if _, present, tombstoned := s.batch.Get(key); present {
			return true, nil
		} else if tombstoned {
			return false, nil
		}
	}
	if _, present, tombstoned := s.memtable.Get(key); present {
		return true, nil
	} else if tombstoned {
		return false, nil
	}
	for _, seg := range s.segments {
		if !seg.mightContain(key) {
			continue
		}
		if seg.tombstones[key] {
			return false, nil
		}
		if _, ok := seg.entries[key]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MaxKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max uint64
	var ok bool
	s.liveKeys.Iterate(func(k uint64) bool {
		if s.liveLocked(k) {
			max, ok = k, true
		}
		return true
	})
	return max, ok, nil
}

func (s *Store) MinKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var min uint64
	var ok bool
	s.liveKeys.Iterate(func(k uint64) bool {
		if s.liveLocked(k) {
			min, ok = k, true
			return false
		}
		return true
	})
	return min, ok, nil
}

func (s *Store) RawNext(k uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k == math.MaxUint64 {
		return kv.Entry{}, false, nil
	}
	it := s.liveKeys.Iterator()
	it.AdvanceIfNeeded(k + 1)
	for it.HasNext() {
		cand := it.Next()
		e, found, _ := s.rawGetLocked(cand)
		if found {
			return e.Clone(), true, nil
		}
	}
	return kv.Entry{}, false, nil
}

func (s *Store) RawPrev(k uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k == 0 {
		return kv.Entry{}, false, nil
	}
	var cands []uint64
	s.liveKeys.Iterate(func(cand uint64) bool {
		if cand >= k {
			return false
		}
		cands = append(cands, cand)
		return true
	})
	for i := len(cands) - 1; i >= 0; i-- {
		if e, found, _ := s.rawGetLocked(cands[i]); found {
			return e.Clone(), true, nil
		}
	}
	return kv.Entry{}, false, nil
}

func (s *Store) RawRemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !loInclusive {
		lo++
	}
	if !hiInclusive {
		if hi == 0 {
			return 0, nil
		}
		hi--
	}
	var keys []uint64
	s.liveKeys.Iterate(func(k uint64) bool {
		if k >= lo && k <= hi {
			keys = append(keys, k)
		}
		return k <= hi
	})
	for _, k := range keys {
		if err := s.applyDeleteLocked(k); err != nil {
			return uint64(len(keys)), err
		}
	}
	return uint64(len(keys)), nil
}

// KeyCount walks liveKeys rather than trusting its raw cardinality, since
// that count includes keys whose TTL has expired but hasn't been reaped
// yet — an exhaustive iteration (and thus exists()) would not count those.
func (s *Store) KeyCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count uint64
	s.liveKeys.Iterate(func(k uint64) bool {
		if s.liveLocked(k) {
			count++
		}
		return true
	})
	return count, nil
}

func (s *Store) DataSize() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalData, nil
}

func (s *Store) FileSizeBytes() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total uint64
	for _, seg := range s.segments {
		if info, err := os.Stat(seg.path); err == nil {
			total += uint64(info.Size())
		}
	}
	return total, nil
}

// CountRangeFast implements spec §4.6's approximate range count: the
// roaring bitmap's rank operation gives an O(log n) key cardinality for
// [lo, hi], which this adapter reports directly rather than further
// approximating through a bytes-per-key estimate, since the exact
// cardinality is already cheaper than the bytes/avg heuristic spec
// describes for engines (like the original row-store targets) that lack a
// ranked key set. liveKeys only reflects committed state, so an active
// batch — which RawIterator's exhaustive path does merge in — must fall
// back rather than answer from the bitmap alone. liveKeys also still holds
// expired-but-unreaped keys, so any TTL record forces the same fallback.
func (s *Store) CountRangeFast(lo, hi uint64) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil || len(s.ttl) > 0 {
		return 0, false, nil
	}
	if s.liveKeys.GetCardinality() == 0 {
		return 0, true, nil
	}
	rankHi := s.liveKeys.Rank(hi)
	var rankLoExclusive uint64
	if lo > 0 {
		rankLoExclusive = s.liveKeys.Rank(lo - 1)
	}
	return rankHi - rankLoExclusive, true, nil
}
