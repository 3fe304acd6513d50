// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(path, filename string, version, size int64) *Entry {
	return &Entry{Path: path, Filename: filename, Version: version, Size: size, Readable: true}
}

func TestInsertAndLookupReadable(t *testing.T) {
	ix := New(t.TempDir(), 10000)

	e1 := entry("/foo", "foo_v1", 1, 100)
	require.NoError(t, ix.Insert(e1))

	got, ok := ix.LookupReadable("/foo")
	require.True(t, ok)
	assert.Same(t, e1, got)

	_, ok = ix.LookupReadable("/bar")
	assert.False(t, ok)
}

func TestLookupReadablePicksMaxVersion(t *testing.T) {
	ix := New(t.TempDir(), 10000)
	e1 := entry("/foo", "foo_v1", 1, 10)
	e2 := entry("/foo", "foo_v2", 2, 10)
	require.NoError(t, ix.Insert(e1))
	require.NoError(t, ix.Insert(e2))

	got, ok := ix.LookupReadable("/foo")
	require.True(t, ok)
	assert.Equal(t, int64(2), got.Version)
}

// TestPinningSkipsRefcountedEntries is scenario 6 of spec.md §8: three
// 400-byte files inserted and closed in order f1, f2, f3; a fourth insert
// evicts the LRU (f1) and succeeds; pinning f2 and inserting a fifth
// evicts f3 instead (LRU-among-evictable).
//
// Capacity is 1200 (3x400) rather than the scenario prose's 1000: at 1000,
// the third insert alone would already need to evict f1 to make room,
// which contradicts the scenario's premise that f1/f2/f3 all coexist until
// f4 arrives. 1200 is the smallest capacity consistent with that premise;
// see DESIGN.md.
func TestPinningSkipsRefcountedEntries(t *testing.T) {
	ix := New(t.TempDir(), 1200)

	f1 := entry("/f1", "f1_v1", 1, 400)
	f2 := entry("/f2", "f2_v1", 1, 400)
	f3 := entry("/f3", "f3_v1", 1, 400)
	require.NoError(t, ix.Insert(f1))
	require.NoError(t, ix.Insert(f2))
	require.NoError(t, ix.Insert(f3))
	// All closed (refcount 0); f1 is LRU, f3 is MRU.

	f4 := entry("/f4", "f4_v1", 1, 400)
	require.NoError(t, ix.Insert(f4))
	_, ok := ix.LookupReadable("/f1")
	assert.False(t, ok, "f1 should have been evicted as LRU")
	_, ok = ix.LookupReadable("/f2")
	assert.True(t, ok)
	_, ok = ix.LookupReadable("/f3")
	assert.True(t, ok)

	// Pin f2, touch nothing else: f2 is still the LRU entry but is
	// skipped because it is pinned, so f3 is the LRU among evictable
	// entries (f4 is MRU).
	f2.Incref()

	f5 := entry("/f5", "f5_v1", 1, 400)
	require.NoError(t, ix.Insert(f5))

	_, ok = ix.LookupReadable("/f2")
	assert.True(t, ok, "pinned f2 must survive eviction")
	_, ok = ix.LookupReadable("/f3")
	assert.False(t, ok, "f3 should be evicted since f2 is pinned")
}

// TestPinningPreventsEvictionFailure is scenario 7: capacity=500, f1 (400B)
// stays pinned; inserting a second 400B entry cannot evict f1 and cannot
// fit alongside it, so Insert fails Busy.
func TestPinningPreventsEvictionFailure(t *testing.T) {
	ix := New(t.TempDir(), 500)
	f1 := entry("/f1", "f1_v1", 1, 400)
	require.NoError(t, ix.Insert(f1))
	f1.Incref()

	f2 := entry("/f2", "f2_v1", 1, 400)
	err := ix.Insert(f2)
	require.Error(t, err)
}

func TestUpdateSizeEvictsAsNeeded(t *testing.T) {
	ix := New(t.TempDir(), 1000)
	f1 := entry("/f1", "f1_v1", 1, 400)
	require.NoError(t, ix.Insert(f1))

	writer := entry("/w", "w_write_1", -1, 400)
	writer.Readable = false
	writer.Incref()
	require.NoError(t, ix.Insert(writer))

	// Growing the writer beyond capacity evicts f1 (unpinned, LRU).
	require.NoError(t, ix.UpdateSize(writer, 700))
	_, ok := ix.LookupReadable("/f1")
	assert.False(t, ok)
	assert.Equal(t, int64(700), writer.Size)
}

func TestRemoveStaleKeepsPinnedWriterCopies(t *testing.T) {
	ix := New(t.TempDir(), 1000)
	old := entry("/f", "f_v1", 1, 100)
	require.NoError(t, ix.Insert(old))

	writer := entry("/f", "f_v1_write_9", -1, 100)
	writer.Readable = false
	writer.Incref()
	require.NoError(t, ix.Insert(writer))

	ix.RemoveStale("/f")
	_, ok := ix.LookupReadable("/f")
	assert.False(t, ok, "old readable copy removed")
	assert.Equal(t, 1, writer.Refcount, "writer-private copy untouched")
}

func TestSizeInvariantNeverExceedsCapacity(t *testing.T) {
	ix := New(t.TempDir(), 1000)
	for i := 0; i < 10; i++ {
		e := entry("/f", "f", int64(i), 150)
		_ = ix.Insert(e) // all are unpinned here, so each insert evicts the LRU entry as needed
		assert.LessOrEqual(t, ix.Size(), ix.Capacity())
	}
}

func TestStatsReflectsOccupancyAfterEviction(t *testing.T) {
	ix := New(t.TempDir(), 800)
	require.NoError(t, ix.Insert(entry("/a", "a_v1", 1, 400)))
	require.NoError(t, ix.Insert(entry("/b", "b_v1", 1, 400)))
	// Evicts /a, since neither is pinned and there is no room for /c otherwise.
	require.NoError(t, ix.Insert(entry("/c", "c_v1", 1, 400)))

	want := Stats{Size: 800, Capacity: 800, Entries: 2, Paths: 2}
	got := ix.GetStats()
	if !assert.Equal(t, want, got) {
		t.Logf("stats diff:\n%s", pretty.Sprint(pretty.Diff(want, got)))
	}
}
