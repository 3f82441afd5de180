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

func (s *Store) RawGet(key uint64) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry kv.Entry
	var found bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		val, err := txn.Get(s.entries, nativeKey(key))
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return kv.IOError(err, "mdbx get entry %d", key)
		}
		term, cmd, data := kv.UnpackValue(val)
		entry = kv.Entry{Key: key, Term: term, Cmd: cmd, Data: append([]byte{}, data...)}
		found = true

		if tsBuf, ttlErr := txn.Get(s.ttl, nativeKey(key)); ttlErr == nil {
			ts := decodeTimestamp(tsBuf)
			if kv.IsExpired(s.clock().NowMs(), ts) {
				found = false
			}
		} else if !mdbx.IsNotFound(ttlErr) {
			return kv.IOError(ttlErr, "mdbx get ttl %d", key)
		}
		return nil
	})
	return entry, found, err
}

func (s *Store) RawPut(e kv.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxn(true, func(txn *mdbx.Txn) error {
		val := kv.PackValue(e.Term, e.Cmd, e.Data)
		if err := txn.Put(s.entries, nativeKey(e.Key), val, 0); err != nil {
			return kv.IOError(err, "mdbx put entry %d", e.Key)
		}
		return nil
	})
}

func (s *Store) RawDelete(key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxn(true, func(txn *mdbx.Txn) error {
		err := txn.Del(s.entries, nativeKey(key), nil)
		if err != nil && !mdbx.IsNotFound(err) {
			return kv.IOError(err, "mdbx delete entry %d", key)
		}
		err = txn.Del(s.ttl, nativeKey(key), nil)
		if err != nil && !mdbx.IsNotFound(err) {
			return kv.IOError(err, "mdbx delete ttl %d", key)
		}
		return nil
	})
}

func (s *Store) RawPhysicalExists(key uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exists bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		_, err := txn.Get(s.entries, nativeKey(key))
		if mdbx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return kv.IOError(err, "mdbx physical-exists %d", key)
		}
		exists = true
		return nil
	})
	return exists, err
}

func (s *Store) MaxKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var key uint64
	var ok bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for max-key")
		}
		defer cur.Close()
		k, _, err := cur.Get(nil, nil, mdbx.Last)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx seek last")
			}
			gotKey := decodeNativeKey(k)
			live, liveErr := s.isLive(txn, gotKey)
			if liveErr != nil {
				return liveErr
			}
			if live {
				key, ok = gotKey, true
				return nil
			}
			k, _, err = cur.Get(nil, nil, mdbx.Prev)
		}
	})
	return key, ok, err
}

func (s *Store) MinKey() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var key uint64
	var ok bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for min-key")
		}
		defer cur.Close()
		k, _, err := cur.Get(nil, nil, mdbx.First)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx seek first")
			}
			gotKey := decodeNativeKey(k)
			live, liveErr := s.isLive(txn, gotKey)
			if liveErr != nil {
				return liveErr
			}
			if live {
				key, ok = gotKey, true
				return nil
			}
			k, _, err = cur.Get(nil, nil, mdbx.Next)
		}
	})
	return key, ok, err
}

func (s *Store) RawNext(k uint64) (kv.Entry, bool, error) {
	return s.seekAdjacent(k, mdbx.SetRange, true)
}

func (s *Store) RawPrev(k uint64) (kv.Entry, bool, error) {
	return s.seekAdjacent(k, mdbx.SetRange, false)
}

// seekAdjacent implements RawNext/RawPrev by positioning a cursor at the
// smallest key >= k (forward=true) or stepping back from it one slot
// (forward=false), then skipping expired entries in the indicated
// direction.
func (s *Store) seekAdjacent(k uint64, op mdbx.CursorOp, forward bool) (kv.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result kv.Entry
	var ok bool
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor")
		}
		defer cur.Close()

		keyBuf, valBuf, err := cur.Get(nativeKey(k), nil, mdbx.SetRange)
		if forward {
			if err != nil && !mdbx.IsNotFound(err) {
				return kv.IOError(err, "mdbx seek-range")
			}
			if mdbx.IsNotFound(err) {
				return nil
			}
			if decodeNativeKey(keyBuf) == k {
				keyBuf, valBuf, err = cur.Get(nil, nil, mdbx.Next)
				if mdbx.IsNotFound(err) {
					return nil
				}
				if err != nil {
					return kv.IOError(err, "mdbx advance next")
				}
			}
		} else {
			if mdbx.IsNotFound(err) {
				keyBuf, valBuf, err = cur.Get(nil, nil, mdbx.Last)
			} else if err != nil {
				return kv.IOError(err, "mdbx seek-range")
			} else {
				keyBuf, valBuf, err = cur.Get(nil, nil, mdbx.Prev)
			}
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx step prev")
			}
		}

		for {
			gotKey := decodeNativeKey(keyBuf)
			term, cmd, data := kv.UnpackValue(valBuf)
			live, err := s.isLive(txn, gotKey)
			if err != nil {
				return err
			}
			if live {
				result = kv.Entry{Key: gotKey, Term: term, Cmd: cmd, Data: append([]byte{}, data...)}
				ok = true
				return nil
			}
			nextOp := mdbx.Next
			if !forward {
				nextOp = mdbx.Prev
			}
			keyBuf, valBuf, err = cur.Get(nil, nil, nextOp)
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx scan for live entry")
			}
		}
	})
	return result, ok, err
}

func (s *Store) isLive(txn *mdbx.Txn, key uint64) (bool, error) {
	tsBuf, err := txn.Get(s.ttl, nativeKey(key))
	if mdbx.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, kv.IOError(err, "mdbx get ttl %d", key)
	}
	return !kv.IsExpired(s.clock().NowMs(), decodeTimestamp(tsBuf)), nil
}

func (s *Store) clock() kv.Clock { return s.clockImpl }

func (s *Store) RawRemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted uint64
	err := s.withTxn(true, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for remove-range")
		}
		defer cur.Close()

		keyBuf, _, err := cur.Get(nativeKey(lo), nil, mdbx.SetRange)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx remove-range scan")
			}
			k := decodeNativeKey(keyBuf)
			if k > hi || (k == hi && !hiInclusive) {
				return nil
			}
			if k == lo && !loInclusive {
				keyBuf, _, err = cur.Get(nil, nil, mdbx.Next)
				continue
			}
			if err := cur.Del(0); err != nil {
				return kv.IOError(err, "mdbx remove-range delete %d", k)
			}
			_ = txn.Del(s.ttl, nativeKey(k), nil)
			deleted++
			keyBuf, _, err = cur.Get(nil, nil, mdbx.Next)
		}
	})
	return deleted, err
}

// KeyCount walks every entry rather than trusting mdbx's own DBI stat,
// since that stat counts keys whose TTL has expired but hasn't been
// reaped yet — an exhaustive iteration (and thus exists()) would not.
func (s *Store) KeyCount() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count uint64
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for key-count")
		}
		defer cur.Close()
		k, _, err := cur.Get(nil, nil, mdbx.First)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx key-count scan")
			}
			live, liveErr := s.isLive(txn, decodeNativeKey(k))
			if liveErr != nil {
				return liveErr
			}
			if live {
				count++
			}
			k, _, err = cur.Get(nil, nil, mdbx.Next)
		}
	})
	return count, err
}

func (s *Store) DataSize() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var size uint64
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for data-size")
		}
		defer cur.Close()
		k, val, err := cur.Get(nil, nil, mdbx.First)
		for {
			if mdbx.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return kv.IOError(err, "mdbx data-size scan")
			}
			live, liveErr := s.isLive(txn, decodeNativeKey(k))
			if liveErr != nil {
				return liveErr
			}
			if live {
				size += uint64(kv.ValueLen(val))
			}
			k, val, err = cur.Get(nil, nil, mdbx.Next)
		}
	})
	return size, err
}

func (s *Store) FileSizeBytes() (uint64, error) {
	info, err := s.env.Info(nil)
	if err != nil {
		return 0, kv.IOError(err, "mdbx env info")
	}
	return uint64(info.Geo.Current), nil
}

// CountRangeFast: the btree backend has no cheaper path than exhaustive
// iteration (mdbx doesn't expose a between-keys cardinality estimate in
// this binding), so it satisfies Primitive via kv.NoFastCount instead of
// overriding this method (see Store embedding kv.NoFastCount in
// store.go).
