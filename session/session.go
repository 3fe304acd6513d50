// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements the per-client file-handle state machine
// (C4): open/read/write/close/lseek/unlink/clientdone, copy-on-write
// isolation of writer-private copies, and the check-on-open freshness
// protocol against the origin. It is grounded on the handle-table shape of
// upspin.io/client's local filesystem client, generalized from Upspin's
// directory-entry model to the flat (path, version) model of spec.md §3.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/jacoboyy/cachefs/cache"
	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/log"
	"github.com/jacoboyy/cachefs/rpcwire"
)

// Mode is a client open mode (spec.md §6).
type Mode = rpcwire.Mode

const (
	ModeRead      = rpcwire.ModeRead
	ModeWrite     = rpcwire.ModeWrite
	ModeCreate    = rpcwire.ModeCreate
	ModeCreateNew = rpcwire.ModeCreateNew
)

// Whence selects the reference point for Lseek (spec.md §6).
type Whence int

const (
	SeekStart Whence = iota
	SeekCurrent
	SeekEnd
)

// rpcClient is the subset of rpcclient.Client a Session needs, so tests can
// supply a fake origin without spinning up HTTP.
type rpcClient interface {
	Fetch(ctx context.Context, path string, mode Mode, knownVersion, offset int64) (*rpcwire.FetchResponse, error)
	Write(ctx context.Context, path string, data []byte, offset int64) (int64, error)
	Unlink(ctx context.Context, path string) error
}

// handle is one open file descriptor within a Session.
type handle struct {
	entry    *cache.Entry
	file     *os.File
	readOnly bool
	position int64
}

// Session is one client connection's independent handle table (C4). All
// operations on a Session are serialized by mu, matching spec.md §5's
// "Session mutex serializes all operations of one client."
type Session struct {
	mu sync.Mutex

	cache  *cache.Index
	client rpcClient

	nextHandle int64
	handles    map[int64]*handle
}

// New returns a Session sharing the given process-wide Cache and RPC
// client, per spec.md §9's "global state... passed by reference into each
// Session."
func New(ix *cache.Index, client rpcClient) *Session {
	return &Session{
		cache:   ix,
		client:  client,
		handles: make(map[int64]*handle),
	}
}

// normalize validates and cleans a client-supplied path, rejecting any
// attempt to escape the cache root (spec.md §3, scenario 8).
func normalize(p string) (string, error) {
	const op = "session.normalize"
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.E(op, p, errors.Permission)
	}
	return path.Clean("/" + clean), nil
}

func chunkName(logicalPath string, version int64) string {
	return fmt.Sprintf("%s_v%d", sanitize(logicalPath), version)
}

func writeChunkName(logicalPath string, handleID int64) string {
	return fmt.Sprintf("%s_v-1_write_%d", sanitize(logicalPath), handleID)
}

// sanitize turns a logical path into a flat on-disk filename component;
// cache files all live directly under the cache directory (spec.md §6's
// on-disk layout), so path separators must not survive into the name.
func sanitize(p string) string {
	return strings.ReplaceAll(strings.TrimPrefix(p, "/"), "/", "_")
}

// Open implements spec.md §4.4's open operation. The cache mutex is held
// for the whole call so concurrent opens of the same path observe a
// consistent version decision.
func (s *Session) Open(ctx context.Context, rawPath string, mode Mode) (int64, error) {
	const op = "session.Open"
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := normalize(rawPath)
	if err != nil {
		return 0, err
	}

	s.cache.Lock()
	defer s.cache.Unlock()

	local, hasLocal := s.cache.LookupReadableLocked(p)
	known := int64(-1)
	if hasLocal {
		known = local.Version
	}

	resp, err := s.client.Fetch(ctx, p, mode, known, 0)
	if err != nil {
		return 0, errors.E(op, p, errors.Permission, err)
	}
	if resp.Kind == int32(rpcwire.KindInvalid) {
		return 0, errnoToError(op, p, resp.Errno)
	}

	var entry *cache.Entry
	switch {
	case mode == ModeCreateNew:
		entry, err = s.installEmpty(p, resp.Version)
		if err != nil {
			return 0, err
		}
		s.cache.RemoveStaleLocked(p)

	case mode == ModeCreate && resp.Kind == int32(rpcwire.KindUpToDate) && !hasLocal:
		// The origin auto-vivified a previously missing path (see
		// origin.Fetch's CREATE-on-missing-path branch): it responds
		// UpToDate with a fresh version and no bytes, since the file is
		// empty, the same way ModeCreateNew's first open does.
		entry, err = s.installEmpty(p, resp.Version)
		if err != nil {
			return 0, err
		}
		s.cache.RemoveStaleLocked(p)

	case resp.Kind == int32(rpcwire.KindUpToDate) && hasLocal:
		entry = local
		entry.Incref()
		s.cache.TouchLocked(entry)

	default:
		entry, err = s.fetchFull(ctx, p, mode, known, resp)
		if err != nil {
			return 0, err
		}
		s.cache.RemoveStaleLocked(p)
	}

	f, err := os.OpenFile(s.cache.Path(entry.Filename), os.O_RDWR, 0644)
	if err != nil {
		entry.Decref()
		return 0, errors.E(op, p, errors.Permission, err)
	}

	s.nextHandle++
	id := s.nextHandle
	s.handles[id] = &handle{
		entry:    entry,
		file:     f,
		readOnly: mode == ModeRead,
	}
	return id, nil
}

// installEmpty creates a zero-length on-disk file for a CREATE_NEW open
// and registers it as an immediately-readable cache entry.
func (s *Session) installEmpty(p string, version int64) (*cache.Entry, error) {
	const op = "session.installEmpty"
	filename := chunkName(p, version)
	if err := s.cache.InstallAtomic(filename, nil); err != nil {
		return nil, errors.E(op, p, errors.Permission, err)
	}
	entry := &cache.Entry{Path: p, Filename: filename, Version: version, Size: 0, Refcount: 1, Readable: true}
	if err := s.cache.InsertLocked(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// fetchFull pulls a whole file from the origin in CHUNK_SIZE pieces
// (spec.md §4.4 step 4, scenario 5) and installs it as a fresh cache
// entry.
func (s *Session) fetchFull(ctx context.Context, p string, mode Mode, known int64, first *rpcwire.FetchResponse) (*cache.Entry, error) {
	const op = "session.fetchFull"
	if first.Kind != int32(rpcwire.KindChunk) {
		return nil, errors.E(op, p, errors.Invalid, errors.Str("unexpected fetch response kind"))
	}

	data := append([]byte(nil), first.Bytes...)
	offset := int64(len(data))
	version := first.Version
	fileSize := first.FileSize
	for offset < fileSize {
		resp, err := s.client.Fetch(ctx, p, mode, known, offset)
		if err != nil {
			return nil, errors.E(op, p, errors.Permission, err)
		}
		if resp.Kind == int32(rpcwire.KindInvalid) {
			return nil, errnoToError(op, p, resp.Errno)
		}
		data = append(data, resp.Bytes...)
		offset += int64(len(resp.Bytes))
		fileSize = resp.FileSize
		version = resp.Version
	}

	filename := chunkName(p, version)
	if err := s.cache.InstallAtomic(filename, data); err != nil {
		return nil, errors.E(op, p, errors.Permission, err)
	}
	entry := &cache.Entry{Path: p, Filename: filename, Version: version, Size: int64(len(data)), Refcount: 1, Readable: true}
	if err := s.cache.InsertLocked(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Read implements spec.md §4.4's read operation.
func (s *Session) Read(h int64, buf []byte) (int, error) {
	const op = "session.Read"
	s.mu.Lock()
	defer s.mu.Unlock()

	hd, ok := s.handles[h]
	if !ok {
		return 0, errors.E(op, errors.BadHandle)
	}
	n, err := hd.file.ReadAt(buf, hd.position)
	if err != nil && err != io.EOF {
		return 0, errors.E(op, hd.entry.Path, errors.Permission, err)
	}
	hd.position += int64(n)
	s.cache.Touch(hd.entry)
	return n, nil
}

// Write implements spec.md §4.4's write operation, including the
// copy-on-write promotion on first write.
func (s *Session) Write(ctx context.Context, h int64, buf []byte) (int, error) {
	const op = "session.Write"
	s.mu.Lock()
	defer s.mu.Unlock()

	hd, ok := s.handles[h]
	if !ok || hd.readOnly {
		return 0, errors.E(op, errors.BadHandle)
	}

	if hd.entry.Readable {
		if err := s.copyOnWrite(h, hd); err != nil {
			return 0, err
		}
	}

	n, err := hd.file.WriteAt(buf, hd.position)
	if err != nil {
		return 0, errors.E(op, hd.entry.Path, errors.Permission, err)
	}
	hd.position += int64(n)

	newSize := hd.entry.Size
	if hd.position > newSize {
		newSize = hd.position
	}
	if newSize != hd.entry.Size {
		if err := s.cache.UpdateSize(hd.entry, newSize); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// copyOnWrite allocates a writer-private entry for hd and switches the
// handle over to it (spec.md §4.4's "Copy-on-write on first write").
func (s *Session) copyOnWrite(h int64, hd *handle) error {
	const op = "session.copyOnWrite"
	old := hd.entry
	newFilename := writeChunkName(old.Path, h)

	src, err := os.Open(s.cache.Path(old.Filename))
	if err != nil {
		return errors.E(op, old.Path, errors.Permission, err)
	}
	defer src.Close()
	dst, err := os.Create(s.cache.Path(newFilename))
	if err != nil {
		return errors.E(op, old.Path, errors.Permission, err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return errors.E(op, old.Path, errors.Permission, err)
	}

	entry := &cache.Entry{Path: old.Path, Filename: newFilename, Version: -1, Size: old.Size, Refcount: 1, Readable: false}
	if err := s.cache.Insert(entry); err != nil {
		os.Remove(s.cache.Path(newFilename))
		return err
	}

	old.Decref()
	hd.file.Close()
	f, err := os.OpenFile(s.cache.Path(newFilename), os.O_RDWR, 0644)
	if err != nil {
		return errors.E(op, old.Path, errors.Permission, err)
	}
	hd.entry = entry
	hd.file = f
	return nil
}

// Close implements spec.md §4.4's close operation: writer-private handles
// stream their content back to the origin in CHUNK_SIZE pieces and adopt
// the server's new version.
func (s *Session) Close(ctx context.Context, h int64) error {
	const op = "session.Close"
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(ctx, h)
}

func (s *Session) closeLocked(ctx context.Context, h int64) error {
	const op = "session.Close"
	hd, ok := s.handles[h]
	if !ok {
		return errors.E(op, errors.BadHandle)
	}
	delete(s.handles, h)
	defer hd.file.Close()
	defer s.cache.Touch(hd.entry)
	defer hd.entry.Decref()

	if hd.entry.Readable {
		return nil
	}

	if err := s.writeBack(ctx, hd); err != nil {
		return errors.E(op, hd.entry.Path, err)
	}
	s.cache.RemoveStale(hd.entry.Path)
	return nil
}

// writeBack streams a writer-private entry's content to the origin in
// CHUNK_SIZE pieces and promotes the entry to readable under the final
// committed version.
func (s *Session) writeBack(ctx context.Context, hd *handle) error {
	const op = "session.writeBack"
	if _, err := hd.file.Seek(0, io.SeekStart); err != nil {
		return errors.E(op, hd.entry.Path, errors.Permission, err)
	}

	buf := make([]byte, rpcwire.ChunkSize)
	var offset int64
	var version int64
	var wrote bool
	for {
		n, rerr := hd.file.Read(buf)
		if n > 0 {
			v, err := s.client.Write(ctx, hd.entry.Path, buf[:n], offset)
			if err != nil {
				return err
			}
			version = v
			wrote = true
			offset += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.E(op, hd.entry.Path, errors.Permission, rerr)
		}
	}
	// Empty writer-private files (e.g. a handle whose only write was zero
	// bytes long) still need one write(offset=0) to obtain a version.
	if !wrote {
		v, err := s.client.Write(ctx, hd.entry.Path, nil, 0)
		if err != nil {
			return err
		}
		version = v
	}

	newFilename := chunkName(hd.entry.Path, version)
	if err := s.cache.PromoteAtomic(hd.entry.Filename, newFilename); err != nil {
		return errors.E(op, hd.entry.Path, errors.Permission, err)
	}
	hd.entry.MarkReadable(version, newFilename)
	return nil
}

// Lseek implements spec.md §4.4's lseek operation.
func (s *Session) Lseek(h int64, pos int64, whence Whence) (int64, error) {
	const op = "session.Lseek"
	s.mu.Lock()
	defer s.mu.Unlock()

	hd, ok := s.handles[h]
	if !ok {
		return 0, errors.E(op, errors.BadHandle)
	}
	var target int64
	switch whence {
	case SeekStart:
		target = pos
	case SeekCurrent:
		target = hd.position + pos
	case SeekEnd:
		target = hd.entry.Size + pos
	default:
		return 0, errors.E(op, errors.Invalid)
	}
	if target < 0 {
		return 0, errors.E(op, errors.Invalid)
	}
	hd.position = target
	s.cache.Touch(hd.entry)
	return target, nil
}

// Unlink implements spec.md §4.4's unlink operation: it is forwarded to
// the origin; cache invalidation happens lazily on the next open.
func (s *Session) Unlink(ctx context.Context, rawPath string) error {
	const op = "session.Unlink"
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := normalize(rawPath)
	if err != nil {
		return err
	}
	if err := s.client.Unlink(ctx, p); err != nil {
		return errors.E(op, p, err)
	}
	return nil
}

// ClientDone implements spec.md §4.4's clientdone operation: every
// still-open handle is closed through the normal close path (propagating
// dirty data), then all Session state is cleared.
func (s *Session) ClientDone(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.handles {
		if err := s.closeLocked(ctx, h); err != nil {
			log.Error.Printf("session.ClientDone: closing handle %d: %v", h, err)
		}
	}
	s.handles = make(map[int64]*handle)
}

// errnoToError maps an origin-reported errno back to a Kind-carrying
// error, matching the Kind<->errno table of spec.md §6.
func errnoToError(op, p string, errno int32) error {
	for _, k := range []errors.Kind{
		errors.Permission, errors.NotExist, errors.Exist, errors.IsDir,
		errors.Invalid, errors.BadHandle, errors.Busy, errors.NoMemory,
	} {
		if int32(k.Errno()) == errno {
			return errors.E(op, p, k)
		}
	}
	return errors.E(op, p, errors.Errorf("origin errno %d", errno))
}
