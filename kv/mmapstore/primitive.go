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
	"github.com/mattsta/kvidxkit/kv"
)

func (s *Store) RawGet(key uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rawGetLocked(key)
}

// rawGetLocked implements the batch-overlay-over-durable-index merge read:
// a pending write in the active batch always wins over the durable index,
// and a pending tombstone suppresses it entirely.
func (s *Store) rawGetLocked(key uint64) (kv.Entry, bool, error) {
	if s.batch != nil {
		if e, present, tombstoned := s.batch.Get(key); present || tombstoned {
			if tombstoned {
				return kv.Entry{}, false, nil
			}
			if s.liveLocked(key, true) {
				return e, true, nil
			}
			return kv.Entry{}, false, nil
		}
	}
	it, ok := s.index.Get(indexEntry{key: key})
	if !ok {
		return kv.Entry{}, false, nil
	}
	if !s.liveLocked(key, false) {
		return kv.Entry{}, false, nil
	}
	return it.entry.Clone(), true, nil
}

// liveLocked reports whether key's TTL (if any) has not yet expired.
// fromBatch is unused: durable and batch-pending entries share the same
// in-memory ttl map (there is no separate pending-TTL overlay).
func (s *Store) liveLocked(key uint64, fromBatch bool) bool {
	ts, has := s.ttl[key]
	if !has {
		return true
	}
	return !kv.IsExpired(s.clockImpl.NowMs(), ts)
}

func (s *Store) RawPut(e kv.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.Put(e)
		return nil
	}
	return s.rawPutLocked(e)
}

func (s *Store) rawPutLocked(e kv.Entry) error {
	if err := s.appendRecord(logRecord{op: opPut, key: e.Key, term: e.Term, cmd: e.Cmd, data: e.Data}); err != nil {
		return err
	}
	s.index.ReplaceOrInsert(indexEntry{key: e.Key, entry: e.Clone()})
	return nil
}

func (s *Store) RawDelete(key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		s.batch.Delete(key)
		return nil
	}
	return s.rawDeleteLocked(key)
}

func (s *Store) rawDeleteLocked(key uint64) error {
	if err := s.appendRecord(logRecord{op: opDelete, key: key}); err != nil {
		return err
	}
	s.index.Delete(indexEntry{key: key})
	delete(s.ttl, key)
	return nil
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
	_, ok := s.index.Get(indexEntry{key: key})
	return ok, nil
}

func (s *Store) MaxKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *indexEntry
	s.index.Descend(func(it indexEntry) bool {
		if !s.liveLocked(it.key, false) {
			return true
		}
		e := it
		found = &e
		return false
	})
	if found == nil {
		return 0, false, nil
	}
	return found.key, true, nil
}

func (s *Store) MinKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *indexEntry
	s.index.Ascend(func(it indexEntry) bool {
		if !s.liveLocked(it.key, false) {
			return true
		}
		e := it
		found = &e
		return false
	})
	if found == nil {
		return 0, false, nil
	}
	return found.key, true, nil
}

func (s *Store) RawNext(k uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result kv.Entry
	var ok bool
	s.index.AscendGreaterOrEqual(indexEntry{key: k + 1}, func(it indexEntry) bool {
		if !s.liveLocked(it.key, false) {
			return true
		}
		result, ok = it.entry.Clone(), true
		return false
	})
	if k == ^uint64(0) {
		return kv.Entry{}, false, nil
	}
	return result, ok, nil
}

func (s *Store) RawPrev(k uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k == 0 {
		return kv.Entry{}, false, nil
	}
	var result kv.Entry
	var ok bool
	s.index.DescendLessOrEqual(indexEntry{key: k - 1}, func(it indexEntry) bool {
		if !s.liveLocked(it.key, false) {
			return true
		}
		result, ok = it.entry.Clone(), true
		return false
	})
	return result, ok, nil
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
	collect := func(it indexEntry) bool {
		keys = append(keys, it.key)
		return true
	}
	if hi == ^uint64(0) {
		// hi+1 would wrap to 0 and make AscendRange's bound empty.
		s.index.AscendGreaterOrEqual(indexEntry{key: lo}, collect)
	} else {
		s.index.AscendRange(indexEntry{key: lo}, indexEntry{key: hi + 1}, collect)
	}
	for _, k := range keys {
		if err := s.rawDeleteLocked(k); err != nil {
			return uint64(len(keys)), err
		}
	}
	return uint64(len(keys)), nil
}

// KeyCount walks the index rather than trusting its raw Len, since that
// count includes keys whose TTL has expired but hasn't been reaped yet —
// an exhaustive iteration (and thus exists()) would not count those.
func (s *Store) KeyCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count uint64
	s.index.Ascend(func(it indexEntry) bool {
		if s.liveLocked(it.key, false) {
			count++
		}
		return true
	})
	return count, nil
}

func (s *Store) DataSize() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var size uint64
	s.index.Ascend(func(it indexEntry) bool {
		if s.liveLocked(it.key, false) {
			size += uint64(len(it.entry.Data))
		}
		return true
	})
	return size, nil
}

func (s *Store) FileSizeBytes() (uint64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, kv.IOError(err, "stat mmap log")
	}
	return uint64(info.Size()), nil
}
