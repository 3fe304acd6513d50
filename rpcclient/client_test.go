// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcclient

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jacoboyy/cachefs/origin"
	"github.com/jacoboyy/cachefs/rpcserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWriteUnlinkOverHTTP(t *testing.T) {
	ts := httptest.NewServer(rpcserver.New(origin.New()))
	defer ts.Close()

	c, err := New(strings.TrimPrefix(ts.URL, "http://"), true)
	require.NoError(t, err)

	ctx := context.Background()
	version, err := c.Write(ctx, "/hi", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	resp, err := c.Fetch(ctx, "/hi", ModeRead, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(resp.Bytes))
	assert.Equal(t, int64(1), resp.Version)

	require.NoError(t, c.Unlink(ctx, "/hi"))

	_, err = c.Fetch(ctx, "/hi", ModeRead, 0, 0)
	require.NoError(t, err)
}

func TestNewRejectsInsecureNonLoopback(t *testing.T) {
	_, err := New("example.com:443", true)
	require.Error(t, err)
}
