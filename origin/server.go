// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package origin is the reference implementation of the authoritative
// file server (C6): the RPC peer spec.md describes only by contract. It
// is grounded on upspin.io/store/inprocess's shape — a mutex-protected
// in-memory map — generalized to hold whole file contents and a
// monotonically increasing per-path version counter instead of
// content-addressed blobs.
package origin

import (
	"sync"

	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/rpcwire"
)

type file struct {
	mu      sync.Mutex
	data    []byte
	version int64
	exists  bool
}

// Server is a non-persistent, in-memory file server implementing the
// three RPCs of spec.md §4.3/§4.6.
type Server struct {
	mu    sync.Mutex
	files map[string]*file
}

// New returns an empty Server.
func New() *Server {
	return &Server{files: make(map[string]*file)}
}

func (s *Server) fileFor(path string, create bool) *file {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[path]
	if !ok && create {
		f = &file{}
		s.files[path] = f
	}
	return f
}

// Fetch implements the fetch RPC. See spec.md §4.3.
func (s *Server) Fetch(path string, mode rpcwire.Mode, knownVersion, offset int64) (*rpcwire.FetchResponse, error) {
	const op = "origin.Fetch"

	f := s.fileFor(path, mode == rpcwire.ModeCreateNew || mode == rpcwire.ModeCreate)
	if f == nil {
		return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindInvalid), Errno: int32(errors.NotExist.Errno())}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if mode == rpcwire.ModeCreateNew {
		if f.exists {
			return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindInvalid), Errno: int32(errors.Exist.Errno())}, nil
		}
		f.exists = true
		f.data = nil
		f.version++
		if f.version == 0 {
			f.version = 1
		}
		return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindUpToDate), Version: f.version}, nil
	}

	if !f.exists {
		if mode == rpcwire.ModeCreate {
			f.exists = true
			f.version++
			if f.version == 0 {
				f.version = 1
			}
			return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindUpToDate), Version: f.version}, nil
		}
		return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindInvalid), Errno: int32(errors.NotExist.Errno())}, nil
	}

	if knownVersion == f.version {
		return &rpcwire.FetchResponse{Kind: int32(rpcwire.KindUpToDate), Version: f.version}, nil
	}

	size := int64(len(f.data))
	if offset < 0 || offset > size {
		return nil, errors.E(op, path, errors.Invalid)
	}
	end := offset + rpcwire.ChunkSize
	if end > size {
		end = size
	}
	return &rpcwire.FetchResponse{
		Kind:     int32(rpcwire.KindChunk),
		Version:  f.version,
		FileSize: size,
		Bytes:    append([]byte(nil), f.data[offset:end]...),
	}, nil
}

// Write implements the write RPC. offset == 0 signals the first chunk of
// a write session and bumps the path's version exactly once; subsequent
// chunks of the same write retain that version. See spec.md §4.3/§4.6.
func (s *Server) Write(path string, data []byte, offset int64) (int64, error) {
	const op = "origin.Write"
	f := s.fileFor(path, true)

	f.mu.Lock()
	defer f.mu.Unlock()

	if offset == 0 {
		f.version++
		if f.version == 0 {
			f.version = 1
		}
		f.exists = true
	}
	if offset < 0 {
		return 0, errors.E(op, path, errors.Invalid)
	}
	end := offset + int64(len(data))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:end], data)
	return f.version, nil
}

// Unlink implements the unlink RPC: it bumps the path's version (so
// cached readers see staleness on their next open) and deletes the
// content. See spec.md §4.4 Unlink and §4.6.
func (s *Server) Unlink(path string) error {
	const op = "origin.Unlink"
	f := s.fileFor(path, false)
	if f == nil || !f.exists {
		return errors.E(op, path, errors.NotExist)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.exists = false
	f.data = nil
	return nil
}
