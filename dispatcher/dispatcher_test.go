// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatcher

import (
	"context"
	"net"
	"testing"
	"time"

	pb "github.com/golang/protobuf/proto"
	"github.com/jacoboyy/cachefs/cache"
	"github.com/jacoboyy/cachefs/clientwire"
	"github.com/jacoboyy/cachefs/origin"
	"github.com/jacoboyy/cachefs/rpcwire"
	"github.com/jacoboyy/cachefs/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type localOrigin struct{ s *origin.Server }

func (o localOrigin) Fetch(_ context.Context, path string, mode session.Mode, known, offset int64) (*rpcwire.FetchResponse, error) {
	return o.s.Fetch(path, mode, known, offset)
}
func (o localOrigin) Write(_ context.Context, path string, data []byte, offset int64) (int64, error) {
	return o.s.Write(path, data, offset)
}
func (o localOrigin) Unlink(_ context.Context, path string) error {
	return o.s.Unlink(path)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, net.Listener) {
	t.Helper()
	ix := cache.New(t.TempDir(), 10<<20)
	d := New(ix, localOrigin{origin.New()})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go d.Serve(l)
	return d, l
}

func roundTrip(t *testing.T, conn net.Conn, op clientwire.Opcode, req, resp pb.Message) {
	t.Helper()
	require.NoError(t, writeFrame(conn, op, req))
	gotOp, payload, err := readFrame(conn)
	require.NoError(t, err)
	assert.Equal(t, op, gotOp)
	require.NoError(t, clientwire.Unmarshal(payload, resp))
}

func TestDispatcherOpenWriteCloseReadRoundTrip(t *testing.T) {
	_, l := newTestDispatcher(t)
	defer l.Close()

	conn, err := net.DialTimeout("tcp", l.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	openResp := &clientwire.OpenResponse{}
	roundTrip(t, conn, clientwire.OpOpen, &clientwire.OpenRequest{Path: "/hello", Mode: int32(session.ModeCreateNew)}, openResp)
	require.Equal(t, int32(0), openResp.Errno)
	handle := openResp.Handle

	writeResp := &clientwire.WriteResponse{}
	roundTrip(t, conn, clientwire.OpWrite, &clientwire.WriteRequest{Handle: handle, Data: []byte("hello world")}, writeResp)
	require.Equal(t, int32(0), writeResp.Errno)
	assert.Equal(t, int32(11), writeResp.N)

	closeResp := &clientwire.CloseResponse{}
	roundTrip(t, conn, clientwire.OpClose, &clientwire.CloseRequest{Handle: handle}, closeResp)
	require.Equal(t, int32(0), closeResp.Errno)

	openResp2 := &clientwire.OpenResponse{}
	roundTrip(t, conn, clientwire.OpOpen, &clientwire.OpenRequest{Path: "/hello", Mode: int32(session.ModeRead)}, openResp2)
	require.Equal(t, int32(0), openResp2.Errno)

	readResp := &clientwire.ReadResponse{}
	roundTrip(t, conn, clientwire.OpRead, &clientwire.ReadRequest{Handle: openResp2.Handle, Length: 11}, readResp)
	require.Equal(t, int32(0), readResp.Errno)
	assert.Equal(t, "hello world", string(readResp.Data))

	closeResp2 := &clientwire.CloseResponse{}
	roundTrip(t, conn, clientwire.OpClose, &clientwire.CloseRequest{Handle: openResp2.Handle}, closeResp2)
	require.Equal(t, int32(0), closeResp2.Errno)
}

func TestDispatcherUnknownHandleIsBadHandle(t *testing.T) {
	_, l := newTestDispatcher(t)
	defer l.Close()

	conn, err := net.DialTimeout("tcp", l.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	readResp := &clientwire.ReadResponse{}
	roundTrip(t, conn, clientwire.OpRead, &clientwire.ReadRequest{Handle: 999, Length: 4}, readResp)
	assert.NotEqual(t, int32(0), readResp.Errno)
}

func TestDispatcherShutdownDrainsConnections(t *testing.T) {
	d, l := newTestDispatcher(t)

	conn, err := net.DialTimeout("tcp", l.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	openResp := &clientwire.OpenResponse{}
	roundTrip(t, conn, clientwire.OpOpen, &clientwire.OpenRequest{Path: "/z", Mode: int32(session.ModeCreateNew)}, openResp)
	require.Equal(t, int32(0), openResp.Errno)

	conn.Close()
	require.NoError(t, d.Shutdown())
}
