// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcwire defines the wire messages for the three RPCs the proxy
// issues to the origin server (fetch, write, unlink), in the same
// reflection-based protobuf style upspin.io/rpc uses for its request and
// response types: plain structs with protobuf struct tags and the minimal
// Reset/String/ProtoMessage trio, marshaled with
// github.com/golang/protobuf/proto rather than hand-rolled JSON or gob.
package rpcwire

import (
	"fmt"

	pb "github.com/golang/protobuf/proto"
)

// ResponseKind discriminates the three Response variants of spec.md §4.3.
type ResponseKind int32

const (
	// KindInvalid carries an origin-side errno; no other field applies.
	KindInvalid ResponseKind = 0
	// KindUpToDate means the caller's known_version already matches the
	// server's; FileSize 0 is used as the "no bytes" sentinel.
	KindUpToDate ResponseKind = 1
	// KindChunk carries up to CHUNK_SIZE bytes of file content.
	KindChunk ResponseKind = 2
)

// ChunkSize is the fixed unit of fetch/write-back payload (spec.md §4.3).
const ChunkSize = 400000

// Mode mirrors the client API's open mode (spec.md §6). It travels inside
// FetchRequest so the origin can apply CREATE/CREATE_NEW semantics.
type Mode int32

const (
	ModeRead Mode = iota
	ModeWrite
	ModeCreate
	ModeCreateNew
)

// FetchRequest is the request for the fetch RPC.
type FetchRequest struct {
	Path         string `protobuf:"bytes,1,opt,name=path" json:"path,omitempty"`
	Mode         int32  `protobuf:"varint,2,opt,name=mode" json:"mode,omitempty"`
	KnownVersion int64  `protobuf:"varint,3,opt,name=known_version,json=knownVersion" json:"known_version,omitempty"`
	Offset       int64  `protobuf:"varint,4,opt,name=offset" json:"offset,omitempty"`
}

func (m *FetchRequest) Reset()         { *m = FetchRequest{} }
func (m *FetchRequest) String() string { return pb.CompactTextString(m) }
func (*FetchRequest) ProtoMessage()    {}

// FetchResponse is the response for the fetch RPC. Exactly one of the
// Kind-dependent fields is meaningful, matching the Invalid/UpToDate/Chunk
// variants of spec.md §4.3.
type FetchResponse struct {
	Kind     int32  `protobuf:"varint,1,opt,name=kind" json:"kind,omitempty"`
	Errno    int32  `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
	Version  int64  `protobuf:"varint,3,opt,name=version" json:"version,omitempty"`
	FileSize int64  `protobuf:"varint,4,opt,name=file_size,json=fileSize" json:"file_size,omitempty"`
	Bytes    []byte `protobuf:"bytes,5,opt,name=bytes" json:"bytes,omitempty"`
}

func (m *FetchResponse) Reset()         { *m = FetchResponse{} }
func (m *FetchResponse) String() string { return pb.CompactTextString(m) }
func (*FetchResponse) ProtoMessage()    {}

// WriteRequest is the request for the write RPC: append-or-overwrite
// bytes at offset. The caller signals "first chunk of this write
// session" with offset == 0.
type WriteRequest struct {
	Path   string `protobuf:"bytes,1,opt,name=path" json:"path,omitempty"`
	Bytes  []byte `protobuf:"bytes,2,opt,name=bytes" json:"bytes,omitempty"`
	Offset int64  `protobuf:"varint,3,opt,name=offset" json:"offset,omitempty"`
}

func (m *WriteRequest) Reset()         { *m = WriteRequest{} }
func (m *WriteRequest) String() string { return pb.CompactTextString(m) }
func (*WriteRequest) ProtoMessage()    {}

// WriteResponse carries the new version assigned by the origin, or an
// errno on failure.
type WriteResponse struct {
	Version int64 `protobuf:"varint,1,opt,name=version" json:"version,omitempty"`
	Errno   int32 `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
}

func (m *WriteResponse) Reset()         { *m = WriteResponse{} }
func (m *WriteResponse) String() string { return pb.CompactTextString(m) }
func (*WriteResponse) ProtoMessage()    {}

// UnlinkRequest is the request for the unlink RPC.
type UnlinkRequest struct {
	Path string `protobuf:"bytes,1,opt,name=path" json:"path,omitempty"`
}

func (m *UnlinkRequest) Reset()         { *m = UnlinkRequest{} }
func (m *UnlinkRequest) String() string { return pb.CompactTextString(m) }
func (*UnlinkRequest) ProtoMessage()    {}

// UnlinkResponse carries 0 on success or an errno on failure.
type UnlinkResponse struct {
	Errno int32 `protobuf:"varint,1,opt,name=errno" json:"errno,omitempty"`
}

func (m *UnlinkResponse) Reset()         { *m = UnlinkResponse{} }
func (m *UnlinkResponse) String() string { return pb.CompactTextString(m) }
func (*UnlinkResponse) ProtoMessage()    {}

// Marshal encodes a wire message with the protobuf codec.
func Marshal(m pb.Message) ([]byte, error) {
	b, err := pb.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("rpcwire: marshal %T: %w", m, err)
	}
	return b, nil
}

// Unmarshal decodes a wire message with the protobuf codec.
func Unmarshal(b []byte, m pb.Message) error {
	if err := pb.Unmarshal(b, m); err != nil {
		return fmt.Errorf("rpcwire: unmarshal %T: %w", m, err)
	}
	return nil
}
