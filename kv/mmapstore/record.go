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

import (
	"encoding/binary"
	"fmt"
)

type logOp byte

const (
	opPut logOp = iota + 1
	opDelete
	opSetExpire
	opPersist
)

// logRecord is one entry of the append-only log. Layout:
//
//	offset 0:  op      (1 byte)
//	offset 1:  key     (8 bytes, big-endian)
//	offset 9:  term    (8 bytes) -- opPut only
//	offset 17: cmd     (8 bytes) -- opPut only
//	offset 25: dataLen (8 bytes) -- opPut only
//	offset 33: data    (dataLen bytes) -- opPut only
//	offset 9:  ttlMs   (8 bytes) -- opSetExpire only
//
// opDelete and opPersist records end after the key.
type logRecord struct {
	op    logOp
	key   uint64
	term  uint64
	cmd   uint64
	ttlMs int64
	data  []byte
}

func encodeRecord(rec logRecord) []byte {
	switch rec.op {
	case opPut:
		buf := make([]byte, 1+8+8+8+8+len(rec.data))
		buf[0] = byte(opPut)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		binary.BigEndian.PutUint64(buf[9:17], rec.term)
		binary.BigEndian.PutUint64(buf[17:25], rec.cmd)
		binary.BigEndian.PutUint64(buf[25:33], uint64(len(rec.data)))
		copy(buf[33:], rec.data)
		return buf
	case opDelete:
		buf := make([]byte, 1+8)
		buf[0] = byte(opDelete)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		return buf
	case opSetExpire:
		buf := make([]byte, 1+8+8)
		buf[0] = byte(opSetExpire)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		binary.BigEndian.PutUint64(buf[9:17], uint64(rec.ttlMs))
		return buf
	case opPersist:
		buf := make([]byte, 1+8)
		buf[0] = byte(opPersist)
		binary.BigEndian.PutUint64(buf[1:9], rec.key)
		return buf
	default:
		panic(fmt.Sprintf("mmapstore: unknown log op %d", rec.op))
	}
}

// decodeRecord parses one record from the front of buf, returning the
// record, the remaining bytes, and an error for a malformed (but
// non-empty) header. rec is nil, with no error, once buf is too short to
// hold even a header — the natural end of a log whose last append may
// have been torn by a crash.
func decodeRecord(buf []byte) (rec *logRecord, rest []byte, err error) {
	if len(buf) < 1 {
		return nil, buf, nil
	}
	op := logOp(buf[0])
	switch op {
	case opPut:
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
		return &logRecord{op: opPut, key: key, term: term, cmd: cmd, data: data}, buf[33+dataLen:], nil
	case opDelete:
		if len(buf) < 9 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		return &logRecord{op: opDelete, key: key}, buf[9:], nil
	case opSetExpire:
		if len(buf) < 17 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		ttlMs := int64(binary.BigEndian.Uint64(buf[9:17]))
		return &logRecord{op: opSetExpire, key: key, ttlMs: ttlMs}, buf[17:], nil
	case opPersist:
		if len(buf) < 9 {
			return nil, buf, nil
		}
		key := binary.BigEndian.Uint64(buf[1:9])
		return &logRecord{op: opPersist, key: key}, buf[9:], nil
	default:
		return nil, nil, fmt.Errorf("unknown log op byte %d", buf[0])
	}
}
