// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache implements the byte-bounded, recency-ordered on-disk cache
// of whole-file copies (C1 and C2 of the design): a doubly-linked LRU list
// in the style of upspin.io/cache.LRU, generalized with per-entry pinning
// (refcount > 0 is never evicted) and a per-path bucket of versioned
// copies, the way upspin.io/dir/dircache's clog keeps a small bucket of
// log entries per path.
package cache

import (
	"bytes"
	"container/list"
	"os"
	"path/filepath"
	"sync"

	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/log"
	"github.com/natefinch/atomic"
)

// Index is the byte-bounded LRU cache of Entries for every logical path.
// All mutating operations serialize under mu; Lookup also serializes so
// callers observe a consistent snapshot, matching spec.md §4.2.
type Index struct {
	mu sync.Mutex

	dir      string // root of the on-disk cache directory
	capacity int64
	size     int64

	ll     *list.List          // recency list; front is MRU, back is LRU
	byPath map[string][]*Entry // small per-path bucket: usually 1-2 entries
}

// New returns an Index rooted at dir with the given byte capacity.
func New(dir string, capacity int64) *Index {
	return &Index{
		dir:      dir,
		capacity: capacity,
		ll:       list.New(),
		byPath:   make(map[string][]*Entry),
	}
}

// Dir returns the cache directory root.
func (ix *Index) Dir() string { return ix.dir }

// Path joins the cache root with an entry's on-disk filename.
func (ix *Index) Path(filename string) string {
	return filepath.Join(ix.dir, filename)
}

// Lock acquires the cache-wide mutex for a multi-call critical section.
// Session.Open uses this to hold the mutex across lookup, the freshness
// RPC, and install, so concurrent opens of the same path observe a
// consistent version decision (spec.md §4.4). Callers that take Lock must
// use the *Locked method variants and call Unlock when done.
func (ix *Index) Lock() { ix.mu.Lock() }

// Unlock releases the mutex acquired by Lock.
func (ix *Index) Unlock() { ix.mu.Unlock() }

// LookupReadable returns the readable entry for path with the maximum
// version, or ok=false if none exists.
func (ix *Index) LookupReadable(path string) (entry *Entry, ok bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.LookupReadableLocked(path)
}

// LookupReadableLocked is LookupReadable for a caller already holding the
// mutex via Lock.
func (ix *Index) LookupReadableLocked(path string) (entry *Entry, ok bool) {
	var best *Entry
	for _, e := range ix.byPath[path] {
		if !e.Readable {
			continue
		}
		if best == nil || e.Version > best.Version {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// Insert adds entry to the index at MRU, evicting least-recently-used
// evictable (refcount == 0) entries as needed to satisfy the capacity
// budget. It fails with an errors.Busy error if the entry cannot fit even
// after evicting everything evictable.
func (ix *Index) Insert(e *Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.InsertLocked(e)
}

// InsertLocked is Insert for a caller already holding the mutex via Lock.
func (ix *Index) InsertLocked(e *Entry) error {
	const op = "cache.Insert"
	if !ix.makeRoomLocked(e.Size) {
		return errors.E(op, e.Path, errors.Busy)
	}
	ix.size += e.Size
	e.elem = ix.ll.PushFront(e)
	ix.byPath[e.Path] = append(ix.byPath[e.Path], e)
	return nil
}

// Touch moves entry to the MRU position.
func (ix *Index) Touch(e *Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.TouchLocked(e)
}

// TouchLocked is Touch for a caller already holding the mutex via Lock.
func (ix *Index) TouchLocked(e *Entry) {
	if e.elem != nil {
		ix.ll.MoveToFront(e.elem)
	}
}

// UpdateSize adjusts capacity accounting for entry to newSize, evicting
// other entries as needed. If the new size cannot be satisfied, state is
// left unchanged and an errors.Busy error is returned.
func (ix *Index) UpdateSize(e *Entry, newSize int64) error {
	const op = "cache.UpdateSize"
	ix.mu.Lock()
	defer ix.mu.Unlock()

	delta := newSize - e.Size
	if delta > 0 {
		// Temporarily exclude this entry's own footprint from the
		// room calculation: it is already charged in ix.size.
		ix.size -= e.Size
		ok := ix.makeRoomLocked(newSize)
		ix.size += e.Size
		if !ok {
			return errors.E(op, e.Path, errors.Busy)
		}
	}
	ix.size += delta
	e.updateSize(newSize)
	return nil
}

// RemoveStale removes every evictable (refcount == 0) entry for path.
// It is typically called after installing a newer version, or lazily
// after an unlink.
func (ix *Index) RemoveStale(path string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.RemoveStaleLocked(path)
}

// RemoveStaleLocked is RemoveStale for a caller already holding the mutex
// via Lock.
func (ix *Index) RemoveStaleLocked(path string) {
	kept := ix.byPath[path][:0]
	for _, e := range ix.byPath[path] {
		if e.Refcount == 0 {
			ix.removeLocked(e)
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(ix.byPath, path)
	} else {
		ix.byPath[path] = kept
	}
}

// Remove unlinks entry from the LRU and its path bucket and deletes its
// on-disk file. Deletion is best-effort: failure to unlink the file does
// not prevent the in-memory entry from being removed.
func (ix *Index) Remove(e *Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	bucket := ix.byPath[e.Path]
	for i, o := range bucket {
		if o == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(ix.byPath, e.Path)
	} else {
		ix.byPath[e.Path] = bucket
	}
	ix.removeLocked(e)
}

// removeLocked removes e from the LRU list and deletes its on-disk file.
// It does not touch ix.byPath; callers manage the bucket themselves.
// Must hold ix.mu.
func (ix *Index) removeLocked(e *Entry) {
	if e.elem != nil {
		ix.ll.Remove(e.elem)
		e.elem = nil
	}
	ix.size -= e.Size
	if err := os.Remove(ix.Path(e.Filename)); err != nil && !os.IsNotExist(err) {
		log.Error.Printf("cache: removing %s: %v", e.Filename, err)
	}
}

// makeRoomLocked evicts LRU-among-evictable entries until adding `need`
// more bytes would not exceed capacity. It returns false, leaving state
// unchanged, if that is not achievable even after evicting every
// unpinned entry. Must hold ix.mu.
func (ix *Index) makeRoomLocked(need int64) bool {
	if ix.size+need <= ix.capacity {
		return true
	}
	var evictable int64
	for elem := ix.ll.Front(); elem != nil; elem = elem.Next() {
		if e := elem.Value.(*Entry); e.Refcount == 0 {
			evictable += e.Size
		}
	}
	if ix.size-evictable+need > ix.capacity {
		return false
	}
	for elem := ix.ll.Back(); elem != nil; {
		if ix.size+need <= ix.capacity {
			return true
		}
		prev := elem.Prev()
		e := elem.Value.(*Entry)
		if e.Refcount == 0 {
			ix.evictEntryLocked(e)
		}
		elem = prev
	}
	return ix.size+need <= ix.capacity
}

// evictEntryLocked removes e from the list and its path bucket and
// deletes its on-disk file. Must hold ix.mu.
func (ix *Index) evictEntryLocked(e *Entry) {
	bucket := ix.byPath[e.Path]
	for i, o := range bucket {
		if o == e {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(ix.byPath, e.Path)
	} else {
		ix.byPath[e.Path] = bucket
	}
	ix.removeLocked(e)
}

// InstallAtomic writes data to a new on-disk file under filename,
// replacing any existing file of the same name atomically, the way
// calvinalkan-agent-task's internal/fs layer uses natefinch/atomic to
// avoid ever exposing a half-written cache file to a concurrent reader.
func (ix *Index) InstallAtomic(filename string, data []byte) error {
	if err := os.MkdirAll(ix.dir, 0755); err != nil {
		return err
	}
	return atomic.WriteFile(ix.Path(filename), bytes.NewReader(data))
}

// PromoteAtomic renames a writer-private file to its committed, readable
// filename atomically: a crash mid-rename can never leave a half-renamed
// file registered as a readable entry.
func (ix *Index) PromoteAtomic(oldFilename, newFilename string) error {
	return atomic.ReplaceFile(ix.Path(oldFilename), ix.Path(newFilename))
}

// Size returns the current total occupancy, for diagnostics.
func (ix *Index) Size() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.size
}

// Capacity returns the configured byte budget.
func (ix *Index) Capacity() int64 { return ix.capacity }

// Stats is a snapshot of occupancy for the debug endpoint.
type Stats struct {
	Size     int64 `json:"size"`
	Capacity int64 `json:"capacity"`
	Entries  int   `json:"entries"`
	Paths    int   `json:"paths"`
}

// GetStats returns a snapshot of current cache occupancy.
func (ix *Index) GetStats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return Stats{
		Size:     ix.size,
		Capacity: ix.capacity,
		Entries:  ix.ll.Len(),
		Paths:    len(ix.byPath),
	}
}
