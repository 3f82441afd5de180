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

// Package kvtest is a backend-agnostic conformance suite: every adapter
// package calls RunContract from its own _test.go so the same invariants
// get exercised identically against the btree, mmap, and LSM backends
// instead of being retyped three times and drifting apart.
package kvtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattsta/kvidxkit/kv"
)

// Factory opens a fresh, empty backend instance rooted at dir and returns
// its Handle.
type Factory func(t *testing.T, dir string) *kv.Handle

// RunContract exercises the facade's core invariants (point operations,
// ordering, iteration, CAS, append/prepend, value ranges, TTL,
// transactions, batch insertion, stats and range deletes) against a
// Handle built fresh by factory for each subtest. Export/import is not
// covered here.
func RunContract(t *testing.T, factory Factory) {
	t.Run("insert-then-get-roundtrips", func(t *testing.T) { testInsertGet(t, factory) })
	t.Run("insert-duplicate-fails", func(t *testing.T) { testInsertDuplicate(t, factory) })
	t.Run("insert-ex-conditions", func(t *testing.T) { testInsertExConditions(t, factory) })
	t.Run("remove-then-get-not-found", func(t *testing.T) { testRemoveThenGet(t, factory) })
	t.Run("ordering-next-prev", func(t *testing.T) { testOrdering(t, factory) })
	t.Run("iterator-forward-reverse", func(t *testing.T) { testIterator(t, factory) })
	t.Run("compare-and-swap", func(t *testing.T) { testCAS(t, factory) })
	t.Run("append-prepend", func(t *testing.T) { testAppendPrepend(t, factory) })
	t.Run("value-range", func(t *testing.T) { testValueRange(t, factory) })
	t.Run("ttl-lifecycle", func(t *testing.T) { testTTL(t, factory) })
	t.Run("transaction-commit", func(t *testing.T) { testTxnCommit(t, factory) })
	t.Run("transaction-abort", func(t *testing.T) { testTxnAbort(t, factory) })
	t.Run("transaction-read-isolation", func(t *testing.T) { testTxnReadIsolation(t, factory) })
	t.Run("batch-insert", func(t *testing.T) { testBatchInsert(t, factory) })
	t.Run("stats-and-count-range", func(t *testing.T) { testStatsCountRange(t, factory) })
	t.Run("remove-range-variants", func(t *testing.T) { testRemoveRangeVariants(t, factory) })
}

func testInsertGet(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(10, 1, 2, []byte("hello")))
	term, cmd, data, err := h.Get(10)
	require.NoError(t, err)
	require.Equal(t, uint64(1), term)
	require.Equal(t, uint64(2), cmd)
	require.Equal(t, []byte("hello"), data)

	ok, err := h.Exists(10)
	require.NoError(t, err)
	require.True(t, ok)

	_, _, _, err = h.Get(11)
	require.ErrorIs(t, err, kv.ErrNotFound)
}

func testInsertDuplicate(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(1, 0, 0, nil))
	err := h.Insert(1, 0, 0, nil)
	require.ErrorIs(t, err, kv.ErrDuplicateKey)
}

func testInsertExConditions(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.InsertEx(1, 1, 1, []byte("a"), kv.Always))
	require.NoError(t, h.InsertEx(1, 2, 2, []byte("b"), kv.Always))
	_, _, data, err := h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("b"), data)

	err = h.InsertEx(2, 0, 0, nil, kv.IfExists)
	require.ErrorIs(t, err, kv.ErrConditionFailed)

	err = h.InsertEx(1, 0, 0, nil, kv.IfNotExists)
	require.ErrorIs(t, err, kv.ErrDuplicateKey)
}

func testRemoveThenGet(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(5, 0, 0, []byte("x")))
	require.NoError(t, h.Remove(5))
	_, _, _, err := h.Get(5)
	require.ErrorIs(t, err, kv.ErrNotFound)

	// Removing an absent key is not an error.
	require.NoError(t, h.Remove(999))
}

func testOrdering(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	for _, k := range []uint64{5, 1, 9, 3} {
		require.NoError(t, h.Insert(k, 0, 0, nil))
	}
	minKey, ok, err := h.MinKey()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), minKey)

	maxKey, ok, err := h.MaxKey()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(9), maxKey)

	e, ok, err := h.Next(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), e.Key)

	e, ok, err = h.Prev(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), e.Key)

	_, ok, err = h.Next(9)
	require.NoError(t, err)
	require.False(t, ok)
}

func testIterator(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	for _, k := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, h.Insert(k, 0, 0, nil))
	}

	cur, err := h.Iterator(2, 4, kv.Forward)
	require.NoError(t, err)
	var got []uint64
	for cur.Next() {
		got = append(got, cur.Entry().Key)
	}
	require.NoError(t, cur.Err())
	require.NoError(t, cur.Close())
	require.Equal(t, []uint64{2, 3, 4}, got)

	cur, err = h.Iterator(2, 4, kv.Reverse)
	require.NoError(t, err)
	got = nil
	for cur.Next() {
		got = append(got, cur.Entry().Key)
	}
	require.NoError(t, cur.Close())
	require.Equal(t, []uint64{4, 3, 2}, got)
}

func testCAS(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	outcome, err := h.CompareAndSwap(1, []byte("old"), 1, 1, []byte("new"))
	require.NoError(t, err)
	require.Equal(t, kv.CASNotFound, outcome)

	require.NoError(t, h.Insert(1, 0, 0, []byte("old")))
	outcome, err = h.CompareAndSwap(1, []byte("wrong"), 1, 1, []byte("new"))
	require.NoError(t, err)
	require.Equal(t, kv.CASNoMatch, outcome)

	outcome, err = h.CompareAndSwap(1, []byte("old"), 9, 9, []byte("new"))
	require.NoError(t, err)
	require.Equal(t, kv.CASSwapped, outcome)

	_, _, data, err := h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("new"), data)
}

func testAppendPrepend(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	n, err := h.Append(1, 1, 1, []byte("foo"))
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	n, err = h.Append(1, 1, 1, []byte("bar"))
	require.NoError(t, err)
	require.Equal(t, uint64(6), n)

	_, _, data, err := h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("foobar"), data)

	n, err = h.Prepend(1, 1, 1, []byte("pre-"))
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)

	_, _, data, err = h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("pre-foobar"), data)
}

func testValueRange(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(1, 0, 0, []byte("0123456789")))
	data, err := h.GetValueRange(1, 2, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("2345"), data)

	n, err := h.SetValueRange(1, 10, []byte("ABC"))
	require.NoError(t, err)
	require.Equal(t, uint64(13), n)

	_, _, data, err = h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789ABC"), data)
}

func testTTL(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	ttl, err := h.GetTTL(42)
	require.NoError(t, err)
	require.Equal(t, kv.TTLNotFound, ttl)

	require.NoError(t, h.Insert(42, 0, 0, []byte("v")))
	ttl, err = h.GetTTL(42)
	require.NoError(t, err)
	require.Equal(t, kv.TTLNone, ttl)

	require.NoError(t, h.SetExpire(42, 1<<30))
	ttl, err = h.GetTTL(42)
	require.NoError(t, err)
	require.Greater(t, ttl, int64(0))

	require.NoError(t, h.Persist(42))
	ttl, err = h.GetTTL(42)
	require.NoError(t, err)
	require.Equal(t, kv.TTLNone, ttl)

	require.NoError(t, h.SetExpireAt(42, -1))
	_, _, _, err = h.Get(42)
	require.ErrorIs(t, err, kv.ErrNotFound)

	reaped, err := h.ExpireScan(0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), reaped)
}

func testTxnCommit(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Begin())
	require.NoError(t, h.Insert(1, 0, 0, []byte("a")))
	require.NoError(t, h.Insert(2, 0, 0, []byte("b")))
	require.NoError(t, h.Commit())

	ok, err := h.Exists(1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = h.Exists(2)
	require.NoError(t, err)
	require.True(t, ok)

	// Commit with no active batch is a no-op success.
	require.NoError(t, h.Commit())
}

func testTxnAbort(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(1, 0, 0, []byte("before")))

	require.NoError(t, h.Begin())
	require.NoError(t, h.InsertEx(1, 9, 9, []byte("during"), kv.Always))
	require.NoError(t, h.Insert(2, 0, 0, []byte("new")))
	require.NoError(t, h.Abort())

	_, _, data, err := h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("before"), data)

	_, _, _, err = h.Get(2)
	require.ErrorIs(t, err, kv.ErrNotFound)

	// Abort with no active batch must not crash.
	require.NoError(t, h.Abort())
}

func testTxnReadIsolation(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	require.NoError(t, h.Insert(1, 0, 0, []byte("durable")))

	require.NoError(t, h.Begin())
	require.NoError(t, h.Remove(1))
	// Within the batch, the pending delete is visible immediately.
	_, _, _, err := h.Get(1)
	require.ErrorIs(t, err, kv.ErrNotFound)
	require.NoError(t, h.Abort())

	// Outside the (aborted) batch, the durable value is back.
	_, _, data, err := h.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), data)
}

func testBatchInsert(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	entries := []kv.Entry{
		{Key: 1, Data: []byte("a")},
		{Key: 2, Data: []byte("b")},
		{Key: 3, Data: []byte("c")},
	}
	n, err := h.InsertBatch(entries)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)

	count, err := h.KeyCount()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)
}

func testStatsCountRange(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	for _, k := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, h.Insert(k, 0, 0, []byte("v")))
	}

	stats, err := h.Stats()
	require.NoError(t, err)
	require.Equal(t, uint64(5), stats.KeyCount)
	require.True(t, stats.HasMinKey)
	require.Equal(t, uint64(1), stats.MinKey)
	require.True(t, stats.HasMaxKey)
	require.Equal(t, uint64(5), stats.MaxKey)

	count, err := h.CountRange(2, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	ok, err := h.ExistsInRange(10, 20)
	require.NoError(t, err)
	require.False(t, ok)
}

func testRemoveRangeVariants(t *testing.T, factory Factory) {
	h := factory(t, t.TempDir())
	defer h.Close()

	for _, k := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, h.Insert(k, 0, 0, nil))
	}

	n, err := h.RemoveRange(2, 4, true, false)
	require.NoError(t, err)
	require.Equal(t, uint64(2), n) // keys 2, 3

	count, err := h.KeyCount()
	require.NoError(t, err)
	require.Equal(t, uint64(3), count) // 1, 4, 5 remain

	n, err = h.RemoveAfterInclusive(4)
	require.NoError(t, err)
	require.Equal(t, uint64(2), n) // 4, 5

	n, err = h.RemoveBeforeInclusive(1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), n) // 1
}
