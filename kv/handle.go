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

import (
	"sync"

	"go.uber.org/zap"
)

// Handle is the caller-owned instance handle of spec §3: it bundles the
// bound adapter vtable, the reusable last-error slot, and the cached
// last-read value buffer that backs get's borrow-until-next-call
// semantics. A Handle is not safe for concurrent use from multiple
// goroutines (spec §5: single-threaded per instance); the mutex here only
// serializes against accidental concurrent use enough to avoid a data race
// panic, not to provide real concurrent semantics.
type Handle struct {
	mu      sync.Mutex
	adapter Adapter
	closed  bool
	log     *zap.Logger

	lastErrKind ErrorKind
	lastErrMsg  string

	// borrow is the buffer behind the most recent Get's returned Entry.Data.
	// Every Handle method that reads or writes an entry invalidates it;
	// Iterator, Export, KeyCount, DataSize, Stats, CountRange,
	// ExistsInRange and GetTTL leave it in place (we don't reclaim the memory —
	// Go has no borrow checker — but we stop vouching for its validity, per
	// spec §3/§9, and tests must treat it as dead).
	borrow []byte
}

func newHandle(a Adapter) *Handle {
	return &Handle{adapter: a}
}

// Unwrap returns the concrete Adapter bound to this Handle. Most callers
// never need this — the whole point of the facade is that they don't —
// but adapter-specific maintenance operations with no place in the
// uniform contract (e.g. the LSM backend's explicit Compact) have to
// reach it somehow.
func (h *Handle) Unwrap() Adapter {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.adapter
}

func (h *Handle) recordErr(err error) error {
	if err == nil {
		return nil
	}
	h.lastErrKind = KindOf(err)
	if e, ok := err.(*Error); ok {
		h.lastErrMsg = e.Message
	} else {
		h.lastErrMsg = err.Error()
	}
	return err
}

// LastError returns the most recent non-ok result's kind and message.
func (h *Handle) LastError() (ErrorKind, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErrKind, h.lastErrMsg
}

func (h *Handle) invalidateBorrow() { h.borrow = nil }

func (h *Handle) checkOpen() error {
	if h.closed {
		return InvalidArgument("operation on a closed handle")
	}
	return nil
}

// Close releases all resources, rolling back any uncommitted batch first.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.invalidateBorrow()
	_ = h.adapter.Abort()
	err := h.adapter.Close()
	h.closed = true
	if err != nil {
		h.logger().Warn("close failed", zap.Error(err))
	} else {
		h.logger().Debug("handle closed")
	}
	return h.recordErr(err)
}

func (h *Handle) Fsync() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.Fsync())
}

func (h *Handle) Begin() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	err := h.adapter.Begin()
	h.logger().Debug("batch begin", zap.Error(err))
	return h.recordErr(err)
}

func (h *Handle) Commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	err := h.adapter.Commit()
	h.logger().Debug("batch commit", zap.Error(err))
	return h.recordErr(err)
}

func (h *Handle) Abort() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	err := h.adapter.Abort()
	h.logger().Debug("batch abort", zap.Error(err))
	return h.recordErr(err)
}

// Get returns (term, cmd, data) for key. The returned data slice is valid
// only until the next operation on this Handle — copy it if you need it
// longer.
func (h *Handle) Get(key uint64) (term, cmd uint64, data []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, 0, nil, h.recordErr(err)
	}
	e, err := h.adapter.Get(key)
	if err != nil {
		return 0, 0, nil, h.recordErr(err)
	}
	h.borrow = e.Data
	return e.Term, e.Cmd, h.borrow, nil
}

func (h *Handle) Exists(key uint64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return false, h.recordErr(err)
	}
	ok, err := h.adapter.Exists(key)
	return ok, h.recordErr(err)
}

func (h *Handle) ExistsDual(key, term uint64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return false, h.recordErr(err)
	}
	ok, err := h.adapter.ExistsDual(key, term)
	return ok, h.recordErr(err)
}

func (h *Handle) Insert(key, term, cmd uint64, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.Insert(key, term, cmd, data))
}

func (h *Handle) InsertEx(key, term, cmd uint64, data []byte, cond InsertCondition) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.InsertEx(key, term, cmd, data, cond))
}

func (h *Handle) Remove(key uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.Remove(key))
}

func (h *Handle) MaxKey() (uint64, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, false, h.recordErr(err)
	}
	k, ok, err := h.adapter.MaxKey()
	return k, ok, h.recordErr(err)
}

func (h *Handle) MinKey() (uint64, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, false, h.recordErr(err)
	}
	k, ok, err := h.adapter.MinKey()
	return k, ok, h.recordErr(err)
}

func (h *Handle) Next(k uint64) (Entry, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return Entry{}, false, h.recordErr(err)
	}
	e, ok, err := h.adapter.Next(k)
	return e, ok, h.recordErr(err)
}

func (h *Handle) Prev(k uint64) (Entry, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return Entry{}, false, h.recordErr(err)
	}
	e, ok, err := h.adapter.Prev(k)
	return e, ok, h.recordErr(err)
}

// Iterator returns a caller-owned cursor. Unlike most Handle methods it
// does not invalidate the previous Get's borrow by itself — obtaining a
// cursor does not read a value — but any subsequent mutation does.
func (h *Handle) Iterator(lo, hi uint64, dir Direction) (Cursor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return nil, h.recordErr(err)
	}
	c, err := h.adapter.Iterator(lo, hi, dir)
	return c, h.recordErr(err)
}

func (h *Handle) RemoveAfterInclusive(k uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.RemoveAfterInclusive(k)
	return n, h.recordErr(err)
}

func (h *Handle) RemoveBeforeInclusive(k uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.RemoveBeforeInclusive(k)
	return n, h.recordErr(err)
}

func (h *Handle) RemoveRange(lo, hi uint64, loInclusive, hiInclusive bool) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.RemoveRange(lo, hi, loInclusive, hiInclusive)
	return n, h.recordErr(err)
}

func (h *Handle) GetAndSet(key, newTerm, newCmd uint64, newData []byte) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return Entry{}, h.recordErr(err)
	}
	e, err := h.adapter.GetAndSet(key, newTerm, newCmd, newData)
	return e, h.recordErr(err)
}

func (h *Handle) GetAndRemove(key uint64) (Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return Entry{}, h.recordErr(err)
	}
	e, err := h.adapter.GetAndRemove(key)
	return e, h.recordErr(err)
}

func (h *Handle) CompareAndSwap(key uint64, expected []byte, newTerm, newCmd uint64, newData []byte) (CASOutcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return CASNotFound, h.recordErr(err)
	}
	outcome, err := h.adapter.CompareAndSwap(key, expected, newTerm, newCmd, newData)
	return outcome, h.recordErr(err)
}

func (h *Handle) Append(key, term, cmd uint64, suffix []byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.Append(key, term, cmd, suffix)
	return n, h.recordErr(err)
}

func (h *Handle) Prepend(key, term, cmd uint64, prefix []byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.Prepend(key, term, cmd, prefix)
	return n, h.recordErr(err)
}

func (h *Handle) GetValueRange(key uint64, offset, length uint64) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return nil, h.recordErr(err)
	}
	data, err := h.adapter.GetValueRange(key, offset, length)
	return data, h.recordErr(err)
}

func (h *Handle) SetValueRange(key uint64, offset uint64, data []byte) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.SetValueRange(key, offset, data)
	return n, h.recordErr(err)
}

func (h *Handle) InsertBatch(entries []Entry) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.InsertBatch(entries)
	return n, h.recordErr(err)
}

func (h *Handle) InsertBatchEx(entries []Entry, predicate func(i int, e Entry) bool) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.InsertBatchEx(entries, predicate)
	return n, h.recordErr(err)
}

func (h *Handle) KeyCount() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.KeyCount()
	return n, h.recordErr(err)
}

func (h *Handle) DataSize() (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.DataSize()
	return n, h.recordErr(err)
}

func (h *Handle) Stats() (Stats, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return Stats{}, h.recordErr(err)
	}
	s, err := h.adapter.Stats()
	return s, h.recordErr(err)
}

func (h *Handle) CountRange(lo, hi uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.CountRange(lo, hi)
	return n, h.recordErr(err)
}

func (h *Handle) ExistsInRange(lo, hi uint64) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return false, h.recordErr(err)
	}
	ok, err := h.adapter.ExistsInRange(lo, hi)
	return ok, h.recordErr(err)
}

func (h *Handle) SetExpire(key uint64, ttlMs int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.SetExpire(key, ttlMs))
}

func (h *Handle) SetExpireAt(key uint64, timestampMs int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.SetExpireAt(key, timestampMs))
}

func (h *Handle) GetTTL(key uint64) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	ms, err := h.adapter.GetTTL(key)
	return ms, h.recordErr(err)
}

func (h *Handle) Persist(key uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return h.recordErr(err)
	}
	return h.recordErr(h.adapter.Persist(key))
}

func (h *Handle) ExpireScan(maxKeys uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidateBorrow()
	if err := h.checkOpen(); err != nil {
		return 0, h.recordErr(err)
	}
	n, err := h.adapter.ExpireScan(maxKeys)
	if err == nil {
		h.logger().Info("expire scan completed", zap.Uint64("reaped", n))
	}
	return n, h.recordErr(err)
}
