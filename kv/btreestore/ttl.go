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

package btreestore

import (
	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/mattsta/kvidxkit/kv"
)

func (s *Store) RawSetExpire(key uint64, timestampMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxn(true, func(txn *mdbx.Txn) error {
		_, err := txn.Get(s.entries, nativeKey(key))
		if mdbx.IsNotFound(err) {
			return kv.ErrNotFound
		}
		if err != nil {
			return kv.IOError(err, "mdbx get entry for set-expire %d", key)
		}
		if err := txn.Put(s.ttl, nativeKey(key), encodeTimestamp(timestampMs), 0); err != nil {
			return kv.IOError(err, "mdbx put ttl %d", key)
		}
		return nil
	})
}

func (s *Store) RawGetTTL(key uint64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ts int64
	var has bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		val, err := txn.Get(s.ttl, nativeKey(key))
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return kv.IOError(err, "mdbx get ttl %d", key)
		}
		ts, has = decodeTimestamp(val), true
		return nil
	})
	return ts, has, err
}

func (s *Store) RawPersist(key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxn(true, func(txn *mdbx.Txn) error {
		err := txn.Del(s.ttl, nativeKey(key), nil)
		if err != nil && !mdbx.IsNotFound(err) {
			return kv.IOError(err, "mdbx delete ttl %d", key)
		}
		return nil
	})
}

func (s *Store) RawExpireScan(nowMs int64, maxKeys uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var reaped uint64
	err := s.withTxn(true, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.ttl)
		if err != nil {
			return kv.IOError(err, "mdbx open ttl cursor for expire-scan")
		}
		defer cur.Close()

		keyBuf, valBuf, err := cur.Get(nil, nil, mdbx.First)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx expire-scan cursor")
			}
			if maxKeys > 0 && reaped >= maxKeys {
				return nil
			}
			k := decodeNativeKey(keyBuf)
			ts := decodeTimestamp(valBuf)
			if kv.IsExpired(nowMs, ts) {
				if err := cur.Del(0); err != nil {
					return kv.IOError(err, "mdbx expire-scan delete ttl %d", k)
				}
				if err := txn.Del(s.entries, nativeKey(k), nil); err != nil && !mdbx.IsNotFound(err) {
					return kv.IOError(err, "mdbx expire-scan delete entry %d", k)
				}
				reaped++
			}
			keyBuf, valBuf, err = cur.Get(nil, nil, mdbx.Next)
		}
	})
	return reaped, err
}
