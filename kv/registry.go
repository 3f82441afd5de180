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

// AdapterFactory opens a backend at path with the given config and returns
// an Adapter bound to it.
type AdapterFactory func(path string, cfg Config) (Adapter, error)

// AdapterInfo is one entry of the adapter registry: a name, the path
// suffix convention it uses (a file extension such as ".mdbx" or ".log"
// for file-based engines, "" for directory-based ones), and the factory
// that opens it.
type AdapterInfo struct {
	Name       string
	PathSuffix string
	Factory    AdapterFactory
}

var (
	registryMu sync.Mutex
	registry   []AdapterInfo
)

// Register adds a backend to the registry. Backends call this from an
// init() function; the registry is otherwise stateless and, once
// initialization is complete, read-only (spec §9: "no global state beyond
// the compile-time adapter registry").
func Register(name, pathSuffix string, factory AdapterFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, existing := range registry {
		if existing.Name == name {
			panic("kv: adapter already registered: " + name)
		}
	}
	registry = append(registry, AdapterInfo{Name: name, PathSuffix: pathSuffix, Factory: factory})
}

// AdapterCount returns the number of backends compiled in.
func AdapterCount() int {
	registryMu.Lock()
	defer registryMu.Unlock()
	return len(registry)
}

// AdapterByIndex returns the i'th registered adapter in registration order.
func AdapterByIndex(i int) (AdapterInfo, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if i < 0 || i >= len(registry) {
		return AdapterInfo{}, false
	}
	return registry[i], true
}

// AdapterByName looks up a registered adapter by name.
func AdapterByName(name string) (AdapterInfo, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, a := range registry {
		if a.Name == name {
			return a, true
		}
	}
	return AdapterInfo{}, false
}

// Adapters returns a snapshot of every registered backend.
func Adapters() []AdapterInfo {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]AdapterInfo, len(registry))
	copy(out, registry)
	return out
}

// Open opens a Handle bound to the named backend at path. This is the
// Go-native spelling of spec's open(path, config) — the backend name
// selects the adapter from the registry instead of being implicit.
func Open(backend, path string, cfg Config) (*Handle, error) {
	info, ok := AdapterByName(backend)
	if !ok {
		return nil, InvalidArgument("unknown backend adapter %q", backend)
	}
	adapter, err := info.Factory(path, cfg.withDefaults())
	if err != nil {
		zap.L().Warn("open failed", zap.String("backend", backend), zap.String("path", path), zap.Error(err))
		return nil, err
	}
	zap.L().Debug("opened handle", zap.String("backend", backend), zap.String("path", path))
	return newHandle(adapter), nil
}
