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

import "github.com/c2h5oh/datasize"

// JournalMode mirrors the option names spec.md borrows from SQLite's
// journal_mode pragma. Every value is accepted; none of the adapters in
// this module reads the field, so it has no effect on their behavior.
type JournalMode string

const (
	JournalDelete   JournalMode = "delete"
	JournalTruncate JournalMode = "truncate"
	JournalPersist  JournalMode = "persist"
	JournalWAL      JournalMode = "wal"
	JournalMemory   JournalMode = "memory"
	JournalOff      JournalMode = "off"
)

// SyncMode governs how aggressively a backend calls fsync around commits.
type SyncMode string

const (
	// SyncOff never fsyncs on commit; only an explicit Fsync call does.
	SyncOff SyncMode = "off"
	// SyncNormal fsyncs at commit barriers.
	SyncNormal SyncMode = "normal"
	// SyncFull fsyncs after every write.
	SyncFull SyncMode = "full"
)

// Config is the open(path, config) option bag of spec §4.1. Unknown-to-
// backend fields are accepted and ignored, never rejected.
type Config struct {
	JournalMode    JournalMode        `toml:"journal-mode"`
	SyncMode       SyncMode           `toml:"sync-mode"`
	MmapSizeBytes  datasize.ByteSize  `toml:"mmap-size-bytes"`
	CacheSizeBytes datasize.ByteSize  `toml:"cache-size-bytes"`
}

// DefaultConfig returns the configuration used when a caller passes a zero
// Config to Open.
func DefaultConfig() Config {
	return Config{
		JournalMode:    JournalWAL,
		SyncMode:       SyncNormal,
		MmapSizeBytes:  64 * datasize.MB,
		CacheSizeBytes: 16 * datasize.MB,
	}
}

// withDefaults fills zero-valued fields of cfg from DefaultConfig, so a
// caller-supplied Config only needs to set the fields it cares about.
func (cfg Config) withDefaults() Config {
	def := DefaultConfig()
	if cfg.JournalMode == "" {
		cfg.JournalMode = def.JournalMode
	}
	if cfg.SyncMode == "" {
		cfg.SyncMode = def.SyncMode
	}
	if cfg.MmapSizeBytes == 0 {
		cfg.MmapSizeBytes = def.MmapSizeBytes
	}
	if cfg.CacheSizeBytes == 0 {
		cfg.CacheSizeBytes = def.CacheSizeBytes
	}
	return cfg
}
