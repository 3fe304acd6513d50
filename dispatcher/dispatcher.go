// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispatcher implements the session dispatcher (C5): it accepts
// client connections, instantiates one Session per client, and tears it
// down on disconnect. It is grounded on the accept-loop shape of
// upspin.io/rpc's HTTP server generalized to a raw framed protocol (see
// frame.go), since spec.md leaves the client-facing transport
// unspecified. Each connection's lifetime is tracked with a
// golang.org/x/sync/errgroup.Group so Shutdown can wait for every
// in-flight close/write-back to finish draining instead of abandoning it.
package dispatcher

import (
	"context"
	"net"

	"github.com/jacoboyy/cachefs/cache"
	"github.com/jacoboyy/cachefs/log"
	"github.com/jacoboyy/cachefs/rpcwire"
	"github.com/jacoboyy/cachefs/session"
	"golang.org/x/sync/errgroup"
)

// originClient is the dependency a Dispatcher hands each Session: the RPC
// client talking to the origin server. It matches rpcclient.Client's
// method set structurally.
type originClient interface {
	Fetch(ctx context.Context, path string, mode session.Mode, knownVersion, offset int64) (*rpcwire.FetchResponse, error)
	Write(ctx context.Context, path string, data []byte, offset int64) (int64, error)
	Unlink(ctx context.Context, path string) error
}

// Dispatcher owns the shared Cache and RPC client and creates one Session
// per accepted connection (spec.md §4.5).
type Dispatcher struct {
	cache  *cache.Index
	client originClient

	listener net.Listener
	group    *errgroup.Group
	ctx      context.Context
}

// New returns a Dispatcher over the given Cache, using client to reach the
// origin for every Session it creates.
func New(ix *cache.Index, client originClient) *Dispatcher {
	g, ctx := errgroup.WithContext(context.Background())
	return &Dispatcher{cache: ix, client: client, group: g, ctx: ctx}
}

// Serve accepts connections on l until Shutdown is called or Accept
// returns a permanent error. Each connection is handled by its own Session
// on its own goroutine tracked by the Dispatcher's errgroup.
func (d *Dispatcher) Serve(l net.Listener) error {
	d.listener = l
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-d.ctx.Done():
				return d.group.Wait()
			default:
				return err
			}
		}
		d.group.Go(func() error {
			d.handleConn(conn)
			return nil
		})
	}
}

// Shutdown stops accepting new connections and waits for every live
// Session to finish draining its clientdone path.
func (d *Dispatcher) Shutdown() error {
	if d.listener != nil {
		d.listener.Close()
	}
	return d.group.Wait()
}

// handleConn runs one client's Session for the lifetime of its connection,
// reading framed requests and writing framed responses until the
// connection is closed, then invokes ClientDone to flush any dirty
// writer-private handles.
func (d *Dispatcher) handleConn(conn net.Conn) {
	defer conn.Close()
	sess := session.New(d.cache, d.client)
	ctx := context.Background()
	defer sess.ClientDone(ctx)

	for {
		if err := serveOneFrame(ctx, conn, sess); err != nil {
			log.Debug.Printf("dispatcher: connection closed: %v", err)
			return
		}
	}
}
