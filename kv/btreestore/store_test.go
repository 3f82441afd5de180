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

package btreestore_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattsta/kvidxkit/kv"
	_ "github.com/mattsta/kvidxkit/kv/btreestore"
	"github.com/mattsta/kvidxkit/kv/kvtest"
)

func open(t *testing.T, dir string) *kv.Handle {
	h, err := kv.Open("btree", filepath.Join(dir, "store.mdbx"), kv.Config{})
	require.NoError(t, err)
	return h
}

func TestContract(t *testing.T) {
	kvtest.RunContract(t, open)
}
