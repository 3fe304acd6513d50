// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRequestRoundTrip(t *testing.T) {
	want := &FetchRequest{Path: "/a/b", Mode: 1, KnownVersion: 5, Offset: ChunkSize}
	b, err := Marshal(want)
	require.NoError(t, err)

	got := &FetchRequest{}
	require.NoError(t, Unmarshal(b, got))
	assert.Equal(t, want, got)
}

func TestFetchResponseChunkRoundTrip(t *testing.T) {
	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}
	want := &FetchResponse{Kind: int32(KindChunk), Version: 3, FileSize: 1000000, Bytes: data}
	b, err := Marshal(want)
	require.NoError(t, err)

	got := &FetchResponse{}
	require.NoError(t, Unmarshal(b, got))
	assert.Equal(t, want, got)
}

func TestWriteResponseRoundTrip(t *testing.T) {
	want := &WriteResponse{Version: 42}
	b, err := Marshal(want)
	require.NoError(t, err)

	got := &WriteResponse{}
	require.NoError(t, Unmarshal(b, got))
	assert.Equal(t, int64(42), got.Version)
	assert.Equal(t, int32(0), got.Errno)
}

func TestUnlinkRoundTrip(t *testing.T) {
	want := &UnlinkRequest{Path: "/doomed"}
	b, err := Marshal(want)
	require.NoError(t, err)

	got := &UnlinkRequest{}
	require.NoError(t, Unmarshal(b, got))
	assert.Equal(t, want.Path, got.Path)
}
