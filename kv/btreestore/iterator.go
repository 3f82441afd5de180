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

// RawIterator materializes the requested range eagerly into a slice
// cursor. mdbx cursors are transaction-scoped and this backend's
// transactions are short-lived per call, so eager materialization avoids
// holding a transaction open for the cursor's entire lifetime.
func (s *Store) RawIterator(lo, hi uint64, dir kv.Direction) (kv.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []kv.Entry
	err := s.withTxn(false, func(txn *mdbx.Txn) error {
		cur, err := txn.OpenCursor(s.entries)
		if err != nil {
			return kv.IOError(err, "mdbx open cursor for iterator")
		}
		defer cur.Close()

		keyBuf, valBuf, err := cur.Get(nativeKey(lo), nil, mdbx.SetRange)
		for {
			if mdbx.IsNotFound(err) {
				break
			}
			if err != nil {
				return kv.IOError(err, "mdbx iterator scan")
			}
			k := decodeNativeKey(keyBuf)
			if k > hi {
				break
			}
			live, err := s.isLive(txn, k)
			if err != nil {
				return err
			}
			if live {
				term, cmd, data := kv.UnpackValue(valBuf)
				entries = append(entries, kv.Entry{Key: k, Term: term, Cmd: cmd, Data: append([]byte{}, data...)})
			}
			keyBuf, valBuf, err = cur.Get(nil, nil, mdbx.Next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if dir == kv.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return kv.NewSliceCursor(entries), nil
}
