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

package kv

import "bytes"

// Base derives the full Adapter surface from a Primitive. A concrete
// adapter embeds *Base and constructs it with itself as the Primitive:
//
//	type Store struct {
//		*kv.Base
//		... native fields ...
//	}
//
//	func Open(path string, cfg kv.Config) (*Store, error) {
//		s := &Store{...}
//		s.Base = kv.NewBase(s, kv.SystemClock{})
//		return s, nil
//	}
type Base struct {
	p     Primitive
	clock Clock
}

// NewBase binds p (normally the struct embedding this Base) as the
// Primitive implementation Base will drive.
func NewBase(p Primitive, clock Clock) *Base {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Base{p: p, clock: clock}
}

func (b *Base) Close() error { return b.p.Close() }
func (b *Base) Fsync() error { return b.p.Fsync() }

// Begin is idempotent: a second Begin while a batch is already active is a
// no-op success, per spec §4.1.
func (b *Base) Begin() error {
	if b.p.HasActiveBatch() {
		return nil
	}
	return b.p.Begin()
}

// Commit with no active batch is a no-op success.
func (b *Base) Commit() error {
	if !b.p.HasActiveBatch() {
		return nil
	}
	return b.p.Commit()
}

// Abort with no active batch is a no-op; spec leaves the return value
// backend-defined but forbids crashing, so this implementation treats it
// as success.
func (b *Base) Abort() error {
	if !b.p.HasActiveBatch() {
		return nil
	}
	return b.p.Abort()
}

func (b *Base) Get(key uint64) (Entry, error) {
	e, found, err := b.p.RawGet(key)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (b *Base) Exists(key uint64) (bool, error) {
	_, found, err := b.p.RawGet(key)
	return found, err
}

func (b *Base) ExistsDual(key, term uint64) (bool, error) {
	e, found, err := b.p.RawGet(key)
	if err != nil || !found {
		return false, err
	}
	return e.Term == term, nil
}

func (b *Base) Insert(key, term, cmd uint64, data []byte) error {
	return b.InsertEx(key, term, cmd, data, IfNotExists)
}

func (b *Base) InsertEx(key, term, cmd uint64, data []byte, cond InsertCondition) error {
	_, found, err := b.p.RawGet(key)
	if err != nil {
		return err
	}
	switch cond {
	case Always:
		// fallthrough to put
	case IfNotExists:
		if found {
			return ErrDuplicateKey
		}
	case IfExists:
		if !found {
			return ErrConditionFailed
		}
	default:
		return InvalidArgument("unknown insert condition %d", cond)
	}
	return b.p.RawPut(Entry{Key: key, Term: term, Cmd: cmd, Data: data})
}

func (b *Base) Remove(key uint64) error {
	return b.p.RawDelete(key)
}

func (b *Base) MaxKey() (uint64, bool, error) { return b.p.MaxKey() }
func (b *Base) MinKey() (uint64, bool, error) { return b.p.MinKey() }
func (b *Base) Next(k uint64) (Entry, bool, error) { return b.p.RawNext(k) }
func (b *Base) Prev(k uint64) (Entry, bool, error) { return b.p.RawPrev(k) }

func (b *Base) Iterator(lo, hi uint64, dir Direction) (Cursor, error) {
	return b.p.RawIterator(lo, hi, dir)
}

func (b *Base) RemoveAfterInclusive(k uint64) (uint64, error) {
	return b.p.RawRemoveRange(k, maxU64, true, true)
}

func (b *Base) RemoveBeforeInclusive(k uint64) (uint64, error) {
	return b.p.RawRemoveRange(0, k, true, true)
}

func (b *Base) RemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (uint64, error) {
	return b.p.RawRemoveRange(lo, hi, loInclusive, hiInclusive)
}

func (b *Base) GetAndSet(key, newTerm, newCmd uint64, newData []byte) (Entry, error) {
	old, found, err := b.p.RawGet(key)
	if err != nil {
		return Entry{}, err
	}
	if err := b.p.RawPut(Entry{Key: key, Term: newTerm, Cmd: newCmd, Data: newData}); err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{Key: key}, nil
	}
	return old, nil
}

func (b *Base) GetAndRemove(key uint64) (Entry, error) {
	old, found, err := b.p.RawGet(key)
	if err != nil {
		return Entry{}, err
	}
	if !found {
		return Entry{}, ErrNotFound
	}
	if err := b.p.RawDelete(key); err != nil {
		return Entry{}, err
	}
	return old, nil
}

func (b *Base) CompareAndSwap(key uint64, expected []byte, newTerm, newCmd uint64, newData []byte) (CASOutcome, error) {
	cur, found, err := b.p.RawGet(key)
	if err != nil {
		return CASNotFound, err
	}
	if !found {
		return CASNotFound, nil
	}
	if !bytes.Equal(cur.Data, expected) {
		return CASNoMatch, nil
	}
	if err := b.p.RawPut(Entry{Key: key, Term: newTerm, Cmd: newCmd, Data: newData}); err != nil {
		return CASNotFound, err
	}
	return CASSwapped, nil
}

func (b *Base) Append(key, term, cmd uint64, suffix []byte) (uint64, error) {
	cur, found, err := b.p.RawGet(key)
	if err != nil {
		return 0, err
	}
	var data []byte
	if found {
		data = append(append([]byte{}, cur.Data...), suffix...)
	} else {
		data = append([]byte{}, suffix...)
	}
	if err := b.p.RawPut(Entry{Key: key, Term: term, Cmd: cmd, Data: data}); err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

func (b *Base) Prepend(key, term, cmd uint64, prefix []byte) (uint64, error) {
	cur, found, err := b.p.RawGet(key)
	if err != nil {
		return 0, err
	}
	var data []byte
	if found {
		data = append(append([]byte{}, prefix...), cur.Data...)
	} else {
		data = append([]byte{}, prefix...)
	}
	if err := b.p.RawPut(Entry{Key: key, Term: term, Cmd: cmd, Data: data}); err != nil {
		return 0, err
	}
	return uint64(len(data)), nil
}

func (b *Base) GetValueRange(key uint64, offset, length uint64) ([]byte, error) {
	cur, found, err := b.p.RawGet(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	data := cur.Data
	if offset >= uint64(len(data)) {
		return []byte{}, nil
	}
	end := uint64(len(data))
	if length != 0 && offset+length < end {
		end = offset + length
	}
	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out, nil
}

func (b *Base) SetValueRange(key uint64, offset uint64, data []byte) (uint64, error) {
	cur, found, err := b.p.RawGet(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrNotFound
	}
	newLen := uint64(len(cur.Data))
	if offset+uint64(len(data)) > newLen {
		newLen = offset + uint64(len(data))
	}
	out := make([]byte, newLen)
	copy(out, cur.Data)
	copy(out[offset:], data)
	if err := b.p.RawPut(Entry{Key: key, Term: cur.Term, Cmd: cur.Cmd, Data: out}); err != nil {
		return 0, err
	}
	return newLen, nil
}

func (b *Base) InsertBatch(entries []Entry) (uint64, error) {
	return b.InsertBatchEx(entries, nil)
}

func (b *Base) InsertBatchEx(entries []Entry, predicate func(i int, e Entry) bool) (uint64, error) {
	selfManaged := !b.p.HasActiveBatch()
	if selfManaged {
		if err := b.p.Begin(); err != nil {
			return 0, err
		}
	}
	var inserted uint64
	for i, e := range entries {
		if predicate != nil && !predicate(i, e) {
			continue
		}
		if err := b.Insert(e.Key, e.Term, e.Cmd, e.Data); err != nil {
			if selfManaged {
				_ = b.p.Abort()
			}
			return inserted, err
		}
		inserted++
	}
	if selfManaged {
		if err := b.p.Commit(); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (b *Base) KeyCount() (uint64, error) { return b.p.KeyCount() }
func (b *Base) DataSize() (uint64, error) { return b.p.DataSize() }

func (b *Base) Stats() (Stats, error) {
	var s Stats
	var err error
	if s.KeyCount, err = b.p.KeyCount(); err != nil {
		return Stats{}, err
	}
	if s.DataSize, err = b.p.DataSize(); err != nil {
		return Stats{}, err
	}
	if s.FileSize, err = b.p.FileSizeBytes(); err != nil {
		return Stats{}, err
	}
	if s.MinKey, s.HasMinKey, err = b.p.MinKey(); err != nil {
		return Stats{}, err
	}
	if s.MaxKey, s.HasMaxKey, err = b.p.MaxKey(); err != nil {
		return Stats{}, err
	}
	return s, nil
}

func (b *Base) CountRange(lo, hi uint64) (uint64, error) {
	if count, ok, err := b.p.CountRangeFast(lo, hi); err != nil {
		return 0, err
	} else if ok {
		return count, nil
	}
	cur, err := b.p.RawIterator(lo, hi, Forward)
	if err != nil {
		return 0, err
	}
	defer cur.Close()
	var n uint64
	for cur.Next() {
		n++
	}
	return n, cur.Err()
}

func (b *Base) ExistsInRange(lo, hi uint64) (bool, error) {
	cur, err := b.p.RawIterator(lo, hi, Forward)
	if err != nil {
		return false, err
	}
	defer cur.Close()
	return cur.Next(), cur.Err()
}

func (b *Base) SetExpire(key uint64, ttlMs int64) error {
	return b.SetExpireAt(key, b.clock.NowMs()+ttlMs)
}

func (b *Base) SetExpireAt(key uint64, timestampMs int64) error {
	_, found, err := b.p.RawGet(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return b.p.RawSetExpire(key, timestampMs)
}

func (b *Base) GetTTL(key uint64) (int64, error) {
	ts, hasTTL, err := b.p.RawGetTTL(key)
	if err != nil {
		return 0, err
	}
	if hasTTL {
		return TTLRemainingMs(b.clock.NowMs(), ts), nil
	}
	exists, err := b.p.RawPhysicalExists(key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return TTLNotFound, nil
	}
	return TTLNone, nil
}

func (b *Base) Persist(key uint64) error {
	return b.p.RawPersist(key)
}

func (b *Base) ExpireScan(maxKeys uint64) (uint64, error) {
	return b.p.RawExpireScan(b.clock.NowMs(), maxKeys)
}

const maxU64 = ^uint64(0)
