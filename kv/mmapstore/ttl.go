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

import "github.com/mattsta/kvidxkit/kv"

func (s *Store) RawSetExpire(key uint64, timestampMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index.Get(indexEntry{key: key}); !ok {
		if s.batch == nil {
			return kv.ErrNotFound
		}
		if _, present, _ := s.batch.Get(key); !present {
			return kv.ErrNotFound
		}
	}
	if err := s.appendRecord(logRecord{op: opSetExpire, key: key, ttlMs: timestampMs}); err != nil {
		return err
	}
	s.ttl[key] = timestampMs
	return nil
}

func (s *Store) RawGetTTL(key uint64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, has := s.ttl[key]
	return ts, has, nil
}

func (s *Store) RawPersist(key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, has := s.ttl[key]; !has {
		return nil
	}
	if err := s.appendRecord(logRecord{op: opPersist, key: key}); err != nil {
		return err
	}
	delete(s.ttl, key)
	return nil
}

func (s *Store) RawExpireScan(nowMs int64, maxKeys uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []uint64
	for k, ts := range s.ttl {
		if kv.IsExpired(nowMs, ts) {
			expired = append(expired, k)
			if maxKeys > 0 && uint64(len(expired)) >= maxKeys {
				break
			}
		}
	}
	for _, k := range expired {
		if err := s.rawDeleteLocked(k); err != nil {
			return uint64(len(expired)), err
		}
	}
	return uint64(len(expired)), nil
}
