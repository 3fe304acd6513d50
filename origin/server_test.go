// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package origin

import (
	"testing"

	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/rpcwire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNewThenFetchReturnsVersion(t *testing.T) {
	s := New()
	resp, err := s.Fetch("/a", rpcwire.ModeCreateNew, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(rpcwire.KindUpToDate), resp.Kind)
	assert.Equal(t, int64(1), resp.Version)

	resp2, err := s.Fetch("/a", rpcwire.ModeCreateNew, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(rpcwire.KindInvalid), resp2.Kind)
	assert.Equal(t, int32(errors.Exist.Errno()), resp2.Errno)
}

func TestFetchMissingPathIsNotExist(t *testing.T) {
	s := New()
	resp, err := s.Fetch("/missing", rpcwire.ModeRead, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(rpcwire.KindInvalid), resp.Kind)
	assert.Equal(t, int32(errors.NotExist.Errno()), resp.Errno)
}

func TestWriteBumpsVersionOnlyAtOffsetZero(t *testing.T) {
	s := New()
	v1, err := s.Write("/f", []byte("hello "), 0)
	require.NoError(t, err)
	v2, err := s.Write("/f", []byte("world"), 6)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	resp, err := s.Fetch("/f", rpcwire.ModeRead, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(rpcwire.KindChunk), resp.Kind)
	assert.Equal(t, "hello world", string(resp.Bytes))
	assert.Equal(t, int64(11), resp.FileSize)
}

func TestLastWriterWins(t *testing.T) {
	s := New()
	_, err := s.Write("/f", []byte("AAAA"), 0)
	require.NoError(t, err)
	_, err = s.Write("/f", []byte("BBBB"), 0)
	require.NoError(t, err)

	resp, err := s.Fetch("/f", rpcwire.ModeRead, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "BBBB", string(resp.Bytes))
}

func TestUpToDateSkipsBytes(t *testing.T) {
	s := New()
	_, err := s.Write("/f", []byte("content"), 0)
	require.NoError(t, err)

	first, err := s.Fetch("/f", rpcwire.ModeRead, 0, 0)
	require.NoError(t, err)

	resp, err := s.Fetch("/f", rpcwire.ModeRead, first.Version, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(rpcwire.KindUpToDate), resp.Kind)
	assert.Nil(t, resp.Bytes)
}

func TestChunkedFetchCoversWholeFile(t *testing.T) {
	s := New()
	data := make([]byte, rpcwire.ChunkSize*2+1000)
	for i := range data {
		data[i] = byte(i)
	}
	_, err := s.Write("/big", data[:rpcwire.ChunkSize], 0)
	require.NoError(t, err)
	_, err = s.Write("/big", data[rpcwire.ChunkSize:2*rpcwire.ChunkSize], rpcwire.ChunkSize)
	require.NoError(t, err)
	_, err = s.Write("/big", data[2*rpcwire.ChunkSize:], 2*rpcwire.ChunkSize)
	require.NoError(t, err)

	var got []byte
	var offset int64
	for {
		resp, err := s.Fetch("/big", rpcwire.ModeRead, 0, offset)
		require.NoError(t, err)
		require.Equal(t, int32(rpcwire.KindChunk), resp.Kind)
		got = append(got, resp.Bytes...)
		offset += int64(len(resp.Bytes))
		if offset >= resp.FileSize {
			break
		}
	}
	assert.Equal(t, data, got)
}

func TestUnlinkThenFetchIsNotExist(t *testing.T) {
	s := New()
	_, err := s.Write("/f", []byte("x"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Unlink("/f"))

	resp, err := s.Fetch("/f", rpcwire.ModeRead, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(errors.NotExist.Errno()), resp.Errno)

	err = s.Unlink("/f")
	assert.True(t, errors.GetKind(err) == errors.NotExist)
}
