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
	"bufio"
	"encoding/binary"
	"os"

	"github.com/mattsta/kvidxkit/kv"
)

type walOp byte

const (
	walPut walOp = iota + 1
	walDelete
	walSetExpire
	walPersist
)

type walRecord struct {
	op    walOp
	key   uint64
	term  uint64
	cmd   uint64
	ttlMs int64
	data  []byte
}

type walWriter struct {
	f *os.File
	w *bufio.Writer
}

func openWAL(path string) (*walWriter, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, kv.IOError(err, "open wal %q", path)
	}
	return &walWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (w *walWriter) append(rec walRecord) error {
	buf := encodeWALRecord(rec)
	if _, err := w.w.Write(buf); err != nil {
		return kv.IOError(err, "append wal record")
	}
	return nil
}

func (w *walWriter) Sync() error {
	if err := w.w.Flush(); err != nil {
		return kv.IOError(err, "flush wal")
	}
	return w.f.Sync()
}

func (w *walWriter) Close() error {
	if err := w.Sync(); err != nil {
		return err
	}
	return w.f.Close()
}

// truncate discards the WAL contents after a successful flush: every entry
// mutation it recorded is now durable in a segment. TTL records are not
// stored in segments; flushLocked re-appends them after the truncate.
func (w *walWriter) truncate() error {
	if err := w.f.Truncate(0); err != nil {
		return kv.IOError(err, "truncate wal")
	}
	if _, err := w.f.Seek(0, 0); err != nil {
		return kv.IOError(err, "rewind wal")
	}
	w.w = bufio.NewWriter(w.f)
	return nil
}

func encodeWALRecord(rec walRecord) []byte {
	switch rec.op {
	case walPut:
		buf := make([]byte, 1+8+8+8+8+len(rec.data))
		buf[0] = byte(walPut)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		binary.BigEndian.PutUint64(buf[9:17], rec.term)
		binary.BigEndian.PutUint64(buf[17:25], rec.cmd)
		binary.BigEndian.PutUint64(buf[25:33], uint64(len(rec.data)))
		copy(buf[33:], rec.data)
		return buf
	case walSetExpire:
		buf := make([]byte, 1+8+8)
		buf[0] = byte(walSetExpire)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		binary.BigEndian.PutUint64(buf[9:17], uint64(rec.ttlMs))
		return buf
	default: // walDelete, walPersist
		buf := make([]byte, 1+8)
		buf[0] = byte(rec.op)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		return buf
	}
}

func decodeWALRecord(buf []byte) (rec *walRecord, rest []byte, err error) {
	if len(buf) < 1 {
		return nil, buf, nil
	}
	op := walOp(buf[0])
	switch op {
	case walPut:
		if len(buf) < 33 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		term := binary.BigEndian.Uint64(buf[9:17])
		cmd := binary.BigEndian.Uint64(buf[17:25])
		dataLen := binary.BigEndian.Uint64(buf[25:33])
		if uint64(len(buf)-33) < dataLen {
			return nil, buf, nil
		}
		data := make([]byte, dataLen)
		copy(data, buf[33:33+dataLen])
		return &walRecord{op: walPut, key: key, term: term, cmd: cmd, data: data}, buf[33+dataLen:], nil
	case walSetExpire:
		if len(buf) < 17 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		ttlMs := int64(binary.BigEndian.Uint64(buf[9:17]))
		return &walRecord{op: walSetExpire, key: key, ttlMs: ttlMs}, buf[17:], nil
	case walDelete, walPersist:
		if len(buf) < 9 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		return &walRecord{op: op, key: key}, buf[9:], nil
	default:
		return nil, nil, kv.InternalError(nil, "unknown wal op byte %d", buf[0])
	}
}

// replayWAL applies every record in the write-ahead log to the in-memory
// memtable and ttl map, in file order, so crash recovery reconstructs
// exactly the state that existed before the process stopped.
func (s *Store) replayWAL() error {
	if _, err := s.wal.f.Seek(0, 0); err != nil {
		return kv.IOError(err, "rewind wal for replay")
	}
	data, err := os.ReadFile(s.wal.f.Name())
	if err != nil {
		return kv.IOError(err, "read wal for replay")
	}
	if _, err := s.wal.f.Seek(0, 2); err != nil {
		return kv.IOError(err, "seek wal to end after replay")
	}
	buf := data
	for len(buf) > 0 {
		rec, rest, err := decodeWALRecord(buf)
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		switch rec.op {
		case walPut:
			s.memtable.Put(kv.Entry{Key: rec.key, Term: rec.term, Cmd: rec.cmd, Data: rec.data})
			s.liveKeys.Add(rec.key)
		case walDelete:
			s.memtable.Delete(rec.key)
			s.liveKeys.Remove(rec.key)
			delete(s.ttl, rec.key)
		case walSetExpire:
			s.ttl[rec.key] = rec.ttlMs
		case walPersist:
			delete(s.ttl, rec.key)
		}
		buf = rest
	}
	return nil
}
