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

// Package btreestore is the B-tree backend of kvidxkit: a thin Primitive
// over a single-file libmdbx environment. Keys live in their own
// IntegerKey-flagged DBI so mdbx compares them numerically without an
// encode/decode round trip; the TTL namespace lives in a second DBI rather
// than kvidxkit's shared-keyspace TTLPrefix convention, since mdbx gives us
// a second table for free and an extra DBI is cheaper than stealing key
// space from the entry table.
package btreestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/mattsta/kvidxkit/kv"
)

func init() {
	kv.Register("btree", ".mdbx", Open)
}

// Store is the Primitive implementation; kv.Base derives the full Adapter
// from it.
type Store struct {
	*kv.Base
	kv.NoFastCount

	mu        sync.Mutex
	env       *mdbx.Env
	entries   mdbx.DBI
	ttl       mdbx.DBI
	clockImpl kv.Clock

	txn *mdbx.Txn // active write transaction, nil when no batch is open
}

// Open creates or opens an mdbx environment at path and returns a Store
// bound to it.
func Open(path string, cfg kv.Config) (kv.Adapter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, kv.IOError(err, "create mdbx parent directory %q", dir)
		}
	}

	env, err := mdbx.NewEnv()
	if err != nil {
		return nil, kv.IOError(err, "create mdbx environment")
	}
	if err := env.SetOption(mdbx.OptMaxDB, 2); err != nil {
		return nil, kv.IOError(err, "set mdbx max-db option")
	}
	if cfg.MmapSizeBytes > 0 {
		if err := env.SetGeometry(-1, -1, int(cfg.MmapSizeBytes), -1, -1, -1); err != nil {
			return nil, kv.IOError(err, "set mdbx geometry")
		}
	}

	flags := uint(mdbx.NoSubdir)
	if cfg.SyncMode == kv.SyncOff {
		flags |= mdbx.SafeNoSync
	}

	if err := env.Open(path, flags, 0o644); err != nil {
		return nil, kv.IOError(err, "open mdbx environment %q", path)
	}

	s := &Store{env: env, clockImpl: kv.SystemClock{}}
	s.Base = kv.NewBase(s, s.clockImpl)

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		return nil, kv.IOError(err, "begin mdbx setup transaction")
	}
	entries, err := txn.OpenDBI("entries", mdbx.Create|mdbx.IntegerKey, nil, nil)
	if err != nil {
		txn.Abort()
		return nil, kv.IOError(err, "open entries dbi")
	}
	ttlDBI, err := txn.OpenDBI("ttl", mdbx.Create|mdbx.IntegerKey, nil, nil)
	if err != nil {
		txn.Abort()
		return nil, kv.IOError(err, "open ttl dbi")
	}
	if err := txn.Commit(); err != nil {
		return nil, kv.IOError(err, "commit mdbx setup transaction")
	}
	s.entries = entries
	s.ttl = ttlDBI
	return s, nil
}

// nativeKey renders k in the platform-native byte order mdbx.IntegerKey
// expects for comparison.
func nativeKey(k uint64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, k)
	return b
}

func decodeNativeKey(b []byte) uint64 {
	var full [8]byte
	copy(full[:], b)
	return binary.NativeEndian.Uint64(full[:])
}

func encodeTimestamp(ms int64) []byte {
	b := make([]byte, 8)
	binary.NativeEndian.PutUint64(b, uint64(ms))
	return b
}

func decodeTimestamp(b []byte) int64 {
	var full [8]byte
	copy(full[:], b)
	return int64(binary.NativeEndian.Uint64(full[:]))
}

// withTxn runs fn against a transaction: the active batch transaction if
// one is open, or a freshly begun and auto-committed one otherwise.
func (s *Store) withTxn(writable bool, fn func(txn *mdbx.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	flags := uint(0)
	if !writable {
		flags = mdbx.Readonly
	}
	txn, err := s.env.BeginTxn(nil, flags)
	if err != nil {
		return kv.IOError(err, "begin mdbx transaction")
	}
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	if writable {
		if err := txn.Commit(); err != nil {
			return kv.IOError(err, "commit mdbx transaction")
		}
		return nil
	}
	txn.Abort()
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn != nil {
		s.txn.Abort()
		s.txn = nil
	}
	s.env.Close()
	return nil
}

func (s *Store) Fsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.env.Sync(true, false); err != nil {
		return kv.IOError(err, "fsync mdbx environment")
	}
	return nil
}

func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn != nil {
		return nil
	}
	txn, err := s.env.BeginTxn(nil, 0)
	if err != nil {
		return kv.IOError(err, "begin mdbx batch transaction")
	}
	s.txn = txn
	return nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return nil
	}
	err := s.txn.Commit()
	s.txn = nil
	if err != nil {
		return kv.IOError(err, "commit mdbx batch transaction")
	}
	return nil
}

func (s *Store) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return nil
	}
	s.txn.Abort()
	s.txn = nil
	return nil
}

func (s *Store) HasActiveBatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn != nil
}
