// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import "container/list"

// Entry is the metadata for one on-disk copy of one logical path (C1 in
// the design). It is a passive record: every mutation is expected to run
// under the owning Index's mutex, the same way upspin.io/cache.LRU's
// *entry values are only ever touched while its mu is held.
type Entry struct {
	// Path is the logical, server-relative path this copy belongs to.
	Path string
	// Filename is the on-disk name, distinct from Path, e.g.
	// "foo_v3" for a committed copy or "foo_v-1_write_42" for an
	// uncommitted writer-private copy.
	Filename string
	// Version is the server-assigned version, or -1 while uncommitted.
	Version int64
	// Size is the current byte length of the on-disk copy.
	Size int64
	// Refcount is the number of open handles currently using this
	// entry. A positive Refcount pins the entry against eviction.
	Refcount int
	// Readable reports whether this copy is visible to future openers.
	// It is false for a writer's private in-progress copy.
	Readable bool

	elem *list.Element // LRU linkage, owned by the Index.
}

// Incref pins the entry for one more user.
func (e *Entry) Incref() {
	e.Refcount++
}

// Decref releases one pin. It never drives Refcount negative.
func (e *Entry) Decref() {
	if e.Refcount > 0 {
		e.Refcount--
	}
}

// MarkReadable promotes a writer-private entry to a readable, versioned
// one. It is idempotent, though callers are expected to invoke it exactly
// once, at commit time (session close).
func (e *Entry) MarkReadable(version int64, filename string) {
	e.Version = version
	e.Filename = filename
	e.Readable = true
}

// updateSize records a new on-disk byte length for the entry. Callers that
// need eviction accounting to stay consistent must go through
// Index.UpdateSize instead of calling this directly.
func (e *Entry) updateSize(n int64) {
	e.Size = n
}
