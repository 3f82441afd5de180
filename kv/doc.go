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

// Package kv is the uniform ordered key-value storage facade: a single
// contract — ordered iteration, conditional writes, CAS, atomic
// get-and-modify, append/prepend, partial-value access, range deletes,
// statistics, TTL, export/import — presented over interchangeable backend
// adapters (github.com/mattsta/kvidxkit/kv/btreestore,
// .../kv/mmapstore, .../kv/lsmstore).
//
// Every stored record is the quadruple (key, term, cmd, data): key is a
// u64 with total ordering, term and cmd are opaque u64 metadata slots that
// round-trip verbatim, and data is an opaque byte blob. Callers open a
// Handle bound to one adapter at a filesystem path; every operation on a
// Handle is synchronous and single-threaded per handle.
package kv
