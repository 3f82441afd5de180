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

import "github.com/tidwall/btree"

// OverlayItem is one pending mutation in a Overlay: either a put (the
// common case) or a tombstone recording that key was deleted within the
// batch, which must suppress the underlying entry during a merge read.
type OverlayItem struct {
	Key       uint64
	Entry     Entry
	Tombstone bool
}

// Overlay is the shared write-batch data structure behind spec §4.5's
// transaction-aware read path: an ordered, deduplicating (last-write-wins)
// set of pending mutations. Both the mmap and LSM adapters — the two
// from-scratch engines with no native transaction object to lean on — use
// this so the overlay semantics cannot drift between them; the btree
// adapter instead rides mdbx's own write transactions and needs no Overlay
// at all.
type Overlay struct {
	tr *btree.BTreeG[OverlayItem]
}

// NewOverlay returns an empty Overlay.
func NewOverlay() *Overlay {
	return &Overlay{tr: btree.NewBTreeG(overlayLess)}
}

func overlayLess(a, b OverlayItem) bool { return a.Key < b.Key }

// Put records a pending upsert of e, replacing any earlier pending
// mutation for the same key (later writes supersede earlier ones within a
// batch, per spec §5 ordering rules).
func (o *Overlay) Put(e Entry) {
	o.tr.Set(OverlayItem{Key: e.Key, Entry: e})
}

// Delete records a pending tombstone for key.
func (o *Overlay) Delete(key uint64) {
	o.tr.Set(OverlayItem{Key: key, Tombstone: true})
}

// Get returns the pending mutation for key, if any. present is true only
// for a pending put; a pending delete reports tombstoned=true and
// present=false.
func (o *Overlay) Get(key uint64) (entry Entry, present bool, tombstoned bool) {
	it, ok := o.tr.Get(OverlayItem{Key: key})
	if !ok {
		return Entry{}, false, false
	}
	if it.Tombstone {
		return Entry{}, false, true
	}
	return it.Entry, true, false
}

// Len returns the number of pending mutations (puts and tombstones).
func (o *Overlay) Len() int { return o.tr.Len() }

// Reset discards all pending mutations.
func (o *Overlay) Reset() { o.tr = btree.NewBTreeG(overlayLess) }

// Ascend visits pending mutations with Key >= pivot in ascending order,
// stopping early if iter returns false.
func (o *Overlay) Ascend(pivot uint64, iter func(OverlayItem) bool) {
	o.tr.Ascend(OverlayItem{Key: pivot}, iter)
}

// Descend visits pending mutations with Key <= pivot in descending order,
// stopping early if iter returns false.
func (o *Overlay) Descend(pivot uint64, iter func(OverlayItem) bool) {
	o.tr.Descend(OverlayItem{Key: pivot}, iter)
}

// Items returns every pending mutation in ascending key order. Used when a
// batch commits and must apply its mutations to durable storage.
func (o *Overlay) Items() []OverlayItem {
	out := make([]OverlayItem, 0, o.tr.Len())
	o.tr.Scan(func(item OverlayItem) bool {
		out = append(out, item)
		return true
	})
	return out
}
