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

package mmapstore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattsta/kvidxkit/kv"
	"github.com/mattsta/kvidxkit/kv/kvtest"
	_ "github.com/mattsta/kvidxkit/kv/mmapstore"
)

func open(t *testing.T, dir string) *kv.Handle {
	h, err := kv.Open("mmap", filepath.Join(dir, "store.log"), kv.Config{})
	require.NoError(t, err)
	return h
}

func TestContract(t *testing.T) {
	kvtest.RunContract(t, open)
}

func TestReplayAfterReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.log")

	h, err := kv.Open("mmap", path, kv.Config{})
	require.NoError(t, err)
	require.NoError(t, h.Insert(1, 1, 1, []byte("persisted")))
	require.NoError(t, h.Close())

	h2, err := kv.Open("mmap", path, kv.Config{})
	require.NoError(t, err)
	defer h2.Close()
	_, _, data, err := h2.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), data)
}
