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

// Package mmapstore is the memory-mapped backend of kvidxkit: an
// append-only log file whose full contents are mapped into memory with
// mmap-go for a crash-replay startup scan, paired with an in-memory,
// entirely-in-RAM ordered index (google/btree) that answers every read
// from then on. Writes append a record to the log and update the index
// directly; they don't go back through the mapping, since the process
// that just wrote a record already holds the bytes it needs.
package mmapstore

import (
	"bufio"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/google/btree"

	"github.com/mattsta/kvidxkit/kv"
)

func init() {
	kv.Register("mmap", ".log", Open)
}

// indexEntry is the in-memory ordered-index item. indexLess gives
// google/btree.BTreeG the numeric key ordering the store promises.
type indexEntry struct {
	key   uint64
	entry kv.Entry
}

func indexLess(a, b indexEntry) bool { return a.key < b.key }

type Store struct {
	*kv.Base
	kv.NoFastCount

	mu    sync.Mutex
	path  string
	file  *os.File
	write *bufio.Writer
	sync  kv.SyncMode

	index *btree.BTreeG[indexEntry]
	ttl   map[uint64]int64

	batch     *kv.Overlay
	clockImpl kv.Clock
}

// Open replays path (creating it if absent) into a fresh in-memory index
// and returns a Store ready to serve reads and writes.
func Open(path string, cfg kv.Config) (kv.Adapter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, kv.IOError(err, "open mmap log %q", path)
	}

	s := &Store{
		path:      path,
		file:      f,
		sync:      cfg.SyncMode,
		index:     btree.NewG(32, indexLess),
		ttl:       make(map[uint64]int64),
		clockImpl: kv.SystemClock{},
	}
	s.Base = kv.NewBase(s, s.clockImpl)

	if err := s.replay(); err != nil {
		f.Close()
		return nil, err
	}
	s.write = bufio.NewWriter(f)
	return s, nil
}

// replay memory-maps the whole log and applies each record to the
// in-memory index in file order, so later records naturally overwrite
// earlier ones for the same key (last-write-wins, the same rule the
// facade itself promises for overlays).
func (s *Store) replay() error {
	info, err := s.file.Stat()
	if err != nil {
		return kv.IOError(err, "stat mmap log %q", s.path)
	}
	if info.Size() == 0 {
		return nil
	}

	m, err := mmap.Map(s.file, mmap.RDONLY, 0)
	if err != nil {
		return kv.IOError(err, "mmap log %q", s.path)
	}
	defer m.Unmap()

	buf := []byte(m)
	for len(buf) > 0 {
		rec, rest, err := decodeRecord(buf)
		if err != nil {
			return kv.InternalError(err, "corrupt mmap log %q", s.path)
		}
		if rec == nil {
			break
		}
		s.applyRecord(*rec)
		buf = rest
	}
	return nil
}

func (s *Store) applyRecord(rec logRecord) {
	switch rec.op {
	case opPut:
		s.index.ReplaceOrInsert(indexEntry{key: rec.key, entry: kv.Entry{Key: rec.key, Term: rec.term, Cmd: rec.cmd, Data: rec.data}})
	case opDelete:
		s.index.Delete(indexEntry{key: rec.key})
		delete(s.ttl, rec.key)
	case opSetExpire:
		s.ttl[rec.key] = rec.ttlMs
	case opPersist:
		delete(s.ttl, rec.key)
	}
}

func (s *Store) appendRecord(rec logRecord) error {
	buf := encodeRecord(rec)
	if _, err := s.write.Write(buf); err != nil {
		return kv.IOError(err, "append mmap log record")
	}
	if s.sync == kv.SyncFull {
		if err := s.write.Flush(); err != nil {
			return kv.IOError(err, "flush mmap log")
		}
		if err := s.file.Sync(); err != nil {
			return kv.IOError(err, "fsync mmap log")
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.write != nil {
		if err := s.write.Flush(); err != nil {
			return kv.IOError(err, "flush mmap log on close")
		}
	}
	return s.file.Close()
}

func (s *Store) Fsync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write.Flush(); err != nil {
		return kv.IOError(err, "flush mmap log")
	}
	if err := s.file.Sync(); err != nil {
		return kv.IOError(err, "fsync mmap log")
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
			if err := s.rawDeleteLocked(item.Key); err != nil {
				return err
			}
			continue
		}
		if err := s.rawPutLocked(item.Entry); err != nil {
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
