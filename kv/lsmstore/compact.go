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
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mattsta/kvidxkit/kv"
)

func (s *Store) applyPutLocked(e kv.Entry) error {
	if err := s.wal.append(walRecord{op: walPut, key: e.Key, term: e.Term, cmd: e.Cmd, data: e.Data}); err != nil {
		return err
	}
	if !s.liveKeys.Contains(e.Key) {
		s.liveKeys.Add(e.Key)
	}
	s.memtable.Put(e)
	s.memtableLen += uint64(33 + len(e.Data))
	s.totalData += uint64(len(e.Data))
	return nil
}

func (s *Store) applyDeleteLocked(key uint64) error {
	if err := s.wal.append(walRecord{op: walDelete, key: key}); err != nil {
		return err
	}
	s.memtable.Delete(key)
	s.liveKeys.Remove(key)
	delete(s.ttl, key)
	s.memtableLen += 9
	return nil
}

// flushLocked writes the current memtable to a new immutable segment and
// resets the memtable and WAL. A no-op if the memtable is empty.
func (s *Store) flushLocked() error {
	items := s.memtable.Items()
	if len(items) == 0 {
		return nil
	}

	raw := encodeSegmentEntries(items)
	id := s.nextSeg
	s.nextSeg++
	path := filepath.Join(s.dir, segmentFileName(id))
	if err := writeSegment(path, raw); err != nil {
		return err
	}

	entries, tombstones, minKey, maxKey, err := decodeSegmentEntries(raw)
	if err != nil {
		return err
	}
	keys := make([]uint64, 0, len(entries)+len(tombstones))
	for k := range entries {
		keys = append(keys, k)
	}
	for k := range tombstones {
		keys = append(keys, k)
	}
	bloom, err := newBloom(keys)
	if err != nil {
		return err
	}

	seg := &segment{id: id, path: path, minKey: minKey, maxKey: maxKey, bloom: bloom, entries: entries, tombstones: tombstones}
	s.segments = append([]*segment{seg}, s.segments...)

	s.memtable = kv.NewOverlay()
	s.memtableLen = 0
	if err := s.wal.truncate(); err != nil {
		return err
	}
	// Segments carry no TTL records, so the live TTL set is rewritten into
	// the fresh WAL to survive the truncate.
	for k, ts := range s.ttl {
		if err := s.wal.append(walRecord{op: walSetExpire, key: k, ttlMs: ts}); err != nil {
			return err
		}
	}
	return nil
}

// Compact merges every on-disk segment plus the current memtable into a
// single new segment, dropping superseded values and tombstones whose
// deletion they record is now the oldest thing on disk. It is ambient
// housekeeping a caller invokes explicitly — nothing in this package
// schedules it.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flushLocked(); err != nil {
		return err
	}
	if len(s.segments) <= 1 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	merged := make([]map[uint64]kv.Entry, len(s.segments))
	tombstoned := make([]map[uint64]bool, len(s.segments))
	for i, seg := range s.segments {
		i, seg := i, seg
		g.Go(func() error {
			merged[i] = seg.entries
			tombstoned[i] = seg.tombstones
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return kv.InternalError(err, "compact segments")
	}

	// Merge oldest to newest so later (newer, earlier in s.segments)
	// entries and tombstones win.
	final := make(map[uint64]kv.Entry)
	deleted := make(map[uint64]bool)
	for i := len(s.segments) - 1; i >= 0; i-- {
		for k, e := range merged[i] {
			final[k] = e
			delete(deleted, k)
		}
		for k := range tombstoned[i] {
			deleted[k] = true
			delete(final, k)
		}
	}

	items := make([]kv.OverlayItem, 0, len(final))
	keys := make([]uint64, 0, len(final))
	for k, e := range final {
		items = append(items, kv.OverlayItem{Key: k, Entry: e})
		keys = append(keys, k)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	raw := encodeSegmentEntries(items)
	id := s.nextSeg
	s.nextSeg++
	path := filepath.Join(s.dir, segmentFileName(id))
	if err := writeSegment(path, raw); err != nil {
		return err
	}
	bloom, err := newBloom(keys)
	if err != nil {
		return err
	}
	var minKey, maxKey uint64
	if len(keys) > 0 {
		minKey, maxKey = items[0].Key, items[len(items)-1].Key
	}

	old := s.segments
	s.segments = []*segment{{id: id, path: path, minKey: minKey, maxKey: maxKey, bloom: bloom, entries: final, tombstones: map[uint64]bool{}}}
	for _, seg := range old {
		_ = os.Remove(seg.path)
	}
	return nil
}
