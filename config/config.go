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

// Package config loads an on-disk TOML file into a Settings, the
// combination of a backend choice, store path, and kv.Config that an
// embedding application can read at startup (cmd/kvidxctl does not use
// it). kv.Config itself stays free of a file format opinion; this package
// is where one is imposed.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/mattsta/kvidxkit/kv"
)

// Settings is the top-level shape of a kvidxkit config file.
type Settings struct {
	Backend string    `toml:"backend"`
	Path    string    `toml:"path"`
	Store   kv.Config `toml:"store"`
}

// Load reads and parses a TOML settings file at path. Unset kv.Config
// fields are left zero here; kv.Open fills them from kv.DefaultConfig.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, kv.IOError(err, "read config file %q", path)
	}
	var s Settings
	if err := toml.Unmarshal(raw, &s); err != nil {
		return Settings{}, kv.InvalidArgument("parse config file %q: %v", path, err)
	}
	if s.Backend == "" {
		return Settings{}, kv.InvalidArgument("config file %q: missing backend", path)
	}
	return s, nil
}

// Save serializes s to path as TOML, overwriting any existing file.
func Save(path string, s Settings) error {
	raw, err := toml.Marshal(s)
	if err != nil {
		return kv.InternalError(err, "marshal config")
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return kv.IOError(err, "write config file %q", path)
	}
	return nil
}
