// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcclient is the typed client (C3) for the three RPCs a Session
// issues to the origin server: fetch, write, unlink. It is an HTTP
// request/response transport modeled on upspin.io/rpc's httpClient.Invoke:
// one POST per call, a protobuf-encoded request body, a protobuf-encoded
// response. Unlike that client it is not authenticated — this layer
// trusts its transport, the way a cache proxy trusts the backend it was
// configured to talk to.
package rpcclient

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	pb "github.com/golang/protobuf/proto"
	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/rpcwire"
	"golang.org/x/net/http2"
)

// Mode mirrors the client API's open mode (spec.md §6).
type Mode = rpcwire.Mode

const (
	ModeRead      = rpcwire.ModeRead
	ModeWrite     = rpcwire.ModeWrite
	ModeCreate    = rpcwire.ModeCreate
	ModeCreateNew = rpcwire.ModeCreateNew
)

// Client issues fetch/write/unlink RPCs to a single origin server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client that talks to the origin server at addr
// ("host:port"). If insecure is true the connection is plain HTTP,
// otherwise HTTPS; insecure must only be used for loopback addresses,
// matching upspin.io/rpc's restriction on its NoSecurity level.
func New(addr string, insecure bool) (*Client, error) {
	const op = "rpcclient.New"
	if insecure && !isLoopback(addr) {
		return nil, errors.E(op, errors.Invalid, errors.Errorf("insecure dial to non-loopback address %q", addr))
	}
	scheme := "https"
	if insecure {
		scheme = "http"
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !insecure {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, errors.E(op, errors.Permission, err)
		}
	}
	return &Client{
		baseURL: scheme + "://" + addr,
		http:    &http.Client{Transport: transport},
	}, nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// invoke POSTs a marshaled request to method ("fetch", "write", "unlink")
// and unmarshals the response.
func (c *Client) invoke(ctx context.Context, method string, req, resp pb.Message) error {
	const op = "rpcclient.invoke"
	body, err := rpcwire.Marshal(req)
	if err != nil {
		return errors.E(op, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return errors.E(op, errors.Permission, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.E(op, errors.Permission, err)
	}
	defer httpResp.Body.Close()
	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.E(op, errors.Permission, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.E(op, errors.Permission, errors.Errorf("origin returned %s: %s", httpResp.Status, respBody))
	}
	if err := rpcwire.Unmarshal(respBody, resp); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Fetch implements spec.md §4.3's fetch RPC.
func (c *Client) Fetch(ctx context.Context, path string, mode Mode, knownVersion, offset int64) (*rpcwire.FetchResponse, error) {
	const op = "rpcclient.Fetch"
	req := &rpcwire.FetchRequest{Path: path, Mode: int32(mode), KnownVersion: knownVersion, Offset: offset}
	resp := &rpcwire.FetchResponse{}
	if err := c.invoke(ctx, "fetch", req, resp); err != nil {
		return nil, errors.E(op, path, err)
	}
	return resp, nil
}

// Write implements spec.md §4.3's write RPC: it appends or overwrites
// bytes at offset and returns the new version the origin assigned.
func (c *Client) Write(ctx context.Context, path string, data []byte, offset int64) (int64, error) {
	const op = "rpcclient.Write"
	req := &rpcwire.WriteRequest{Path: path, Bytes: data, Offset: offset}
	resp := &rpcwire.WriteResponse{}
	if err := c.invoke(ctx, "write", req, resp); err != nil {
		return 0, errors.E(op, path, err)
	}
	if resp.Errno != 0 {
		return 0, errnoError(op, path, resp.Errno)
	}
	return resp.Version, nil
}

// Unlink implements spec.md §4.3's unlink RPC.
func (c *Client) Unlink(ctx context.Context, path string) error {
	const op = "rpcclient.Unlink"
	req := &rpcwire.UnlinkRequest{Path: path}
	resp := &rpcwire.UnlinkResponse{}
	if err := c.invoke(ctx, "unlink", req, resp); err != nil {
		return errors.E(op, path, err)
	}
	if resp.Errno != 0 {
		return errnoError(op, path, resp.Errno)
	}
	return nil
}

func errnoError(op, path string, errno int32) error {
	for _, k := range []errors.Kind{
		errors.Permission, errors.NotExist, errors.Exist, errors.IsDir,
		errors.Invalid, errors.BadHandle, errors.Busy, errors.NoMemory,
	} {
		if int32(k.Errno()) == errno {
			return errors.E(op, path, k)
		}
	}
	return errors.E(op, path, errors.Errorf("origin errno %d", errno))
}
