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

// Package lsmstore is the representative LSM backend of kvidxkit: a
// memtable overlay backed by a write-ahead log, periodically flushed into
// immutable, bloom-filtered, zstd-compressed on-disk segments. It is the
// one adapter that implements spec §4.5's transaction-aware merge read in
// full: an active batch overlays the memtable, which overlays the
// segments newest-to-oldest, with tombstones suppressing anything older.
//
// Compaction and flush only ever run when Fsync, Compact, or Close calls
// them — there is no background ticker. Scheduling *when* that happens is
// left to the caller, by design.
package lsmstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/gofrs/flock"

	"github.com/mattsta/kvidxkit/kv"
)

func init() {
	kv.Register("lsm", "", Open)
}

const memtableFlushThresholdBytes = 4 << 20 // 4 MiB of resident memtable data before an implicit flush on Fsync (Compact and Close flush regardless)

type Store struct {
	*kv.Base

	mu  sync.Mutex
	dir string

	lock *flock.Flock
	wal  *walWriter

	memtable    *kv.Overlay // durable, WAL-backed mutations not yet flushed to a segment
	memtableLen uint64      // approximate resident bytes of memtable, for the flush threshold
	batch       *kv.Overlay // active transaction overlay, nil when none is open

	ttl map[uint64]int64

	segments []*segment // newest first

	liveKeys  *roaring64.Bitmap
	totalData uint64

	clockImpl kv.Clock
	nextSeg   int
}

// Open acquires an exclusive directory lock, loads the segment files found
// in the directory, replays the write-ahead log over them, and returns a
// Store.
func Open(path string, cfg kv.Config) (kv.Adapter, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, kv.IOError(err, "create lsm directory %q", path)
	}

	lock := flock.New(filepath.Join(path, "LOCK"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, kv.IOError(err, "lock lsm directory %q", path)
	}
	if !locked {
		return nil, kv.IOError(fmt.Errorf("directory already locked"), "open lsm store %q", path)
	}

	s := &Store{
		dir:       path,
		lock:      lock,
		memtable:  kv.NewOverlay(),
		ttl:       make(map[uint64]int64),
		liveKeys:  roaring64.New(),
		clockImpl: kv.SystemClock{},
	}
	s.Base = kv.NewBase(s, s.clockImpl)

	if err := s.loadSegments(); err != nil {
		lock.Unlock()
		return nil, err
	}

	wal, err := openWAL(filepath.Join(path, "wal.log"))
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	s.wal = wal
	if err := s.replayWAL(); err != nil {
		lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.flushLocked(); err != nil {
		return err
	}
	if err := s.wal.Close(); err != nil {
		return err
	}
	return s.lock.Unlock()
}

func (s *Store) Fsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.wal.Sync(); err != nil {
		return err
	}
	if s.memtableLen >= memtableFlushThresholdBytes {
		return s.flushLocked()
	}
	return nil
}

func (s *Store) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		return nil
	}
	s.batch = kv.NewOverlay()
	return nil
}

func (s *Store) HasActiveBatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch != nil
}

func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		return nil
	}
	for _, item := range s.batch.Items() {
		if item.Tombstone {
			if err := s.applyDeleteLocked(item.Key); err != nil {
				return err
			}
			continue
		}
		if err := s.applyPutLocked(item.Entry); err != nil {
			return err
		}
	}
	s.batch = nil
	return nil
}

func (s *Store) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = nil
	return nil
}
