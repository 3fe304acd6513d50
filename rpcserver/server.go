// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcserver exposes an origin.Server as an HTTP handler, mirroring
// the one-method-per-path dispatch upspin.io/rpc/storeserver uses for its
// Get/Put/Delete trio, generalized to the fetch/write/unlink RPCs of
// spec.md §4.3. There is no session or authentication layer here: the
// proxy is the only client this server ever expects to see, per
// SPEC_FULL.md §4.8's TLS/autocert note.
package rpcserver

import (
	"fmt"
	"io"
	"net/http"

	pb "github.com/golang/protobuf/proto"
	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/log"
	"github.com/jacoboyy/cachefs/rpcwire"
)

// errnoOf maps a Kind-carrying error to its wire errno, falling back to
// Other (0) for errors with no matching Kind — e.g. a transport-layer
// failure that should not reach this far in practice.
func errnoOf(err error) int32 {
	return int32(errors.GetKind(err).Errno())
}

// Origin is the subset of origin.Server this handler needs, so tests can
// supply a fake without importing the origin package.
type Origin interface {
	Fetch(path string, mode rpcwire.Mode, knownVersion, offset int64) (*rpcwire.FetchResponse, error)
	Write(path string, data []byte, offset int64) (int64, error)
	Unlink(path string) error
}

type server struct {
	origin Origin
}

// New returns an http.Handler serving fetch/write/unlink at /fetch,
// /write, /unlink respectively.
func New(o Origin) http.Handler {
	s := &server{origin: o}
	mux := http.NewServeMux()
	mux.HandleFunc("/fetch", s.handleFetch)
	mux.HandleFunc("/write", s.handleWrite)
	mux.HandleFunc("/unlink", s.handleUnlink)
	return mux
}

func readRequest(r *http.Request, req pb.Message) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return rpcwire.Unmarshal(body, req)
}

func writeResponse(w http.ResponseWriter, resp pb.Message) {
	body, err := rpcwire.Marshal(resp)
	if err != nil {
		log.Error.Printf("rpcserver: marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(body)
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req rpcwire.FetchRequest
	if err := readRequest(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("bad fetch request: %v", err), http.StatusBadRequest)
		return
	}
	log.Debug.Printf("rpcserver.fetch(%q, mode=%d, known=%d, off=%d)", req.Path, req.Mode, req.KnownVersion, req.Offset)
	resp, err := s.origin.Fetch(req.Path, rpcwire.Mode(req.Mode), req.KnownVersion, req.Offset)
	if err != nil {
		log.Debug.Printf("rpcserver.fetch(%q): %v", req.Path, err)
		writeResponse(w, &rpcwire.FetchResponse{Kind: int32(rpcwire.KindInvalid), Errno: errnoOf(err)})
		return
	}
	writeResponse(w, resp)
}

func (s *server) handleWrite(w http.ResponseWriter, r *http.Request) {
	var req rpcwire.WriteRequest
	if err := readRequest(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("bad write request: %v", err), http.StatusBadRequest)
		return
	}
	log.Debug.Printf("rpcserver.write(%q, %d bytes, off=%d)", req.Path, len(req.Bytes), req.Offset)
	version, err := s.origin.Write(req.Path, req.Bytes, req.Offset)
	if err != nil {
		log.Debug.Printf("rpcserver.write(%q): %v", req.Path, err)
		writeResponse(w, &rpcwire.WriteResponse{Errno: errnoOf(err)})
		return
	}
	writeResponse(w, &rpcwire.WriteResponse{Version: version})
}

func (s *server) handleUnlink(w http.ResponseWriter, r *http.Request) {
	var req rpcwire.UnlinkRequest
	if err := readRequest(r, &req); err != nil {
		http.Error(w, fmt.Sprintf("bad unlink request: %v", err), http.StatusBadRequest)
		return
	}
	log.Debug.Printf("rpcserver.unlink(%q)", req.Path)
	if err := s.origin.Unlink(req.Path); err != nil {
		log.Debug.Printf("rpcserver.unlink(%q): %v", req.Path, err)
		writeResponse(w, &rpcwire.UnlinkResponse{Errno: errnoOf(err)})
		return
	}
	writeResponse(w, &rpcwire.UnlinkResponse{})
}
