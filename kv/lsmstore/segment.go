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
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/holiman/bloomfilter/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/mattsta/kvidxkit/kv"
)

// segment is one immutable, sorted, zstd-compressed run produced by
// flushing the memtable. Segments are consulted newest-first so a later
// flush's values and tombstones shadow an earlier flush's.
type segment struct {
	id         int
	path       string
	minKey     uint64
	maxKey     uint64
	bloom      *bloomfilter.Filter
	entries    map[uint64]kv.Entry
	tombstones map[uint64]bool
}

// keyHash adapts a uint64 key to bloomfilter.Filter's Hash64 interface.
type keyHash uint64

func (k keyHash) Sum64() uint64 { return uint64(k) }

func newBloom(keys []uint64) (*bloomfilter.Filter, error) {
	n := uint64(len(keys))
	if n == 0 {
		n = 1
	}
	f, err := bloomfilter.NewOptimal(n, 0.01)
	if err != nil {
		return nil, kv.InternalError(err, "build segment bloom filter")
	}
	for _, k := range keys {
		f.Add(keyHash(k))
	}
	return f, nil
}

func (s *segment) mightContain(key uint64) bool {
	if key < s.minKey || key > s.maxKey {
		return false
	}
	if s.bloom == nil {
		return true
	}
	return s.bloom.Contains(keyHash(key))
}

func segmentFileName(id int) string { return fmt.Sprintf("segment-%08d.zst", id) }

// encodeSegmentEntries serializes a sorted list of overlay items (puts and
// tombstones) into the segment's on-disk record layout, ahead of zstd
// compression.
func encodeSegmentEntries(items []kv.OverlayItem) []byte {
	var size int
	for _, it := range items {
		if it.Tombstone {
			size += 1 + 8
		} else {
			size += 1 + 8 + 8 + 8 + 8 + len(it.Entry.Data)
		}
	}
	buf := make([]byte, 0, size)
	for _, it := range items {
		if it.Tombstone {
			rec := make([]byte, 1+8)
			rec[0] = 0
			binary.BigEndian.PutUint64(rec[1:9], it.Key)
			buf = append(buf, rec...)
			continue
		}
		rec := make([]byte, 1+8+8+8+8+len(it.Entry.Data))
		rec[0] = 1
		binary.BigEndian.PutUint64(rec[1:9], it.Key)
		binary.BigEndian.PutUint64(rec[9:17], it.Entry.Term)
		binary.BigEndian.PutUint64(rec[17:25], it.Entry.Cmd)
		binary.BigEndian.PutUint64(rec[25:33], uint64(len(it.Entry.Data)))
		copy(rec[33:], it.Entry.Data)
		buf = append(buf, rec...)
	}
	return buf
}

func decodeSegmentEntries(buf []byte) (entries map[uint64]kv.Entry, tombstones map[uint64]bool, minKey, maxKey uint64, err error) {
	entries = make(map[uint64]kv.Entry)
	tombstones = make(map[uint64]bool)
	first := true
	for len(buf) > 0 {
		if len(buf) < 9 {
			return nil, nil, 0, 0, kv.InternalError(nil, "truncated segment record")
		}
		tag := buf[0]
		key := binary.BigEndian.Uint64(buf[1:9])
		if first {
			minKey, maxKey = key, key
			first = false
		} else {
			if key < minKey {
				minKey = key
			}
			if key > maxKey {
				maxKey = key
			}
		}
		if tag == 0 {
			tombstones[key] = true
			buf = buf[9:]
			continue
		}
		if len(buf) < 33 {
			return nil, nil, 0, 0, kv.InternalError(nil, "truncated segment entry record")
		}
		term := binary.BigEndian.Uint64(buf[9:17])
		cmd := binary.BigEndian.Uint64(buf[17:25])
		dataLen := binary.BigEndian.Uint64(buf[25:33])
		data := make([]byte, dataLen)
		copy(data, buf[33:33+dataLen])
		entries[key] = kv.Entry{Key: key, Term: term, Cmd: cmd, Data: data}
		buf = buf[33+dataLen:]
	}
	return entries, tombstones, minKey, maxKey, nil
}

// writeSegment zstd-compresses raw and writes it to path.
func writeSegment(path string, raw []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return kv.IOError(err, "create segment file %q", path)
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f)
	if err != nil {
		return kv.IOError(err, "create zstd encoder")
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return kv.IOError(err, "write segment data")
	}
	return enc.Close()
}

func readSegment(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, kv.IOError(err, "open segment file %q", path)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, kv.IOError(err, "create zstd decoder")
	}
	defer dec.Close()
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, kv.IOError(err, "decompress segment data")
	}
	return raw, nil
}

// loadSegments discovers existing segment files on disk (a prior process's
// flushes) and loads each one into memory, newest id first.
func (s *Store) loadSegments() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return kv.IOError(err, "list lsm directory %q", s.dir)
	}
	var ids []int
	for _, de := range entries {
		if de.IsDir() || !strings.HasPrefix(de.Name(), "segment-") || !strings.HasSuffix(de.Name(), ".zst") {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(de.Name(), "segment-%08d.zst", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ids)))

	for _, id := range ids {
		path := filepath.Join(s.dir, segmentFileName(id))
		raw, err := readSegment(path)
		if err != nil {
			return err
		}
		segEntries, tombstones, minKey, maxKey, err := decodeSegmentEntries(raw)
		if err != nil {
			return err
		}
		keys := make([]uint64, 0, len(segEntries)+len(tombstones))
		for k := range segEntries {
			keys = append(keys, k)
			s.totalData += uint64(len(segEntries[k].Data))
		}
		for k := range tombstones {
			keys = append(keys, k)
		}
		bloom, err := newBloom(keys)
		if err != nil {
			return err
		}
		s.segments = append(s.segments, &segment{
			id: id, path: path, minKey: minKey, maxKey: maxKey,
			bloom: bloom, entries: segEntries, tombstones: tombstones,
		})
		if id >= s.nextSeg {
			s.nextSeg = id + 1
		}
	}
	// Build the live-key bitmap oldest segment first, so a newer segment's
	// puts and tombstones override an older one's.
	for i := len(s.segments) - 1; i >= 0; i-- {
		for k := range s.segments[i].entries {
			s.liveKeys.Add(k)
		}
		for k := range s.segments[i].tombstones {
			s.liveKeys.Remove(k)
		}
	}
	return nil
}
