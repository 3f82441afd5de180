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

package lsmstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattsta/kvidxkit/kv"
	"github.com/mattsta/kvidxkit/kv/kvtest"
	"github.com/mattsta/kvidxkit/kv/lsmstore"
)

func open(t *testing.T, dir string) *kv.Handle {
	h, err := kv.Open("lsm", filepath.Join(dir, "db"), kv.Config{})
	require.NoError(t, err)
	return h
}

func TestContract(t *testing.T) {
	kvtest.RunContract(t, open)
}

func TestCompactPreservesLiveData(t *testing.T) {
	dir := t.TempDir()
	h, err := kv.Open("lsm", filepath.Join(dir, "db"), kv.Config{})
	require.NoError(t, err)
	defer h.Close()

	for i := uint64(0); i < 100; i++ {
		require.NoError(t, h.Insert(i, 0, 0, []byte("v")))
	}
	for i := uint64(0); i < 50; i++ {
		require.NoError(t, h.Remove(i))
	}

	store, ok := adapterStore(t, h)
	require.True(t, ok)
	require.NoError(t, store.Compact(context.Background()))

	count, err := h.KeyCount()
	require.NoError(t, err)
	require.Equal(t, uint64(50), count)

	_, _, _, err = h.Get(10)
	require.ErrorIs(t, err, kv.ErrNotFound)
	_, _, _, err = h.Get(60)
	require.NoError(t, err)
}

// adapterStore is a test-only hook that reaches past the Handle to the
// concrete *lsmstore.Store so compaction can be driven directly; the
// facade itself exposes no generic "compact" operation.
func adapterStore(t *testing.T, h *kv.Handle) (*lsmstore.Store, bool) {
	t.Helper()
	store, ok := h.Unwrap().(*lsmstore.Store)
	return store, ok
}
