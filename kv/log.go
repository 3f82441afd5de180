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

import "go.uber.org/zap"

// SetLogger attaches a structured logger to h. Lifecycle events — close,
// batch begin/commit/abort, and expire-scan outcomes — are logged to it at
// Debug/Info/Warn (Open logs to zap's global logger, since no Handle exists
// yet); the hot per-operation path (Get, Insert, ...) never logs,
// matching the teacher codebase's own convention of keeping loggers off
// the critical path. A nil logger restores the no-op default.
func (h *Handle) SetLogger(l *zap.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	h.log = l
}

func (h *Handle) logger() *zap.Logger {
	if h.log == nil {
		return zap.NewNop()
	}
	return h.log
}
