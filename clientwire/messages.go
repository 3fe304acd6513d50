// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package clientwire defines the wire messages for the client-facing API
// of spec.md §6 (open/read/write/close/lseek/unlink), in the same
// golang/protobuf struct-tag style as rpcwire's origin-facing messages.
// The protocol itself is unspecified by spec.md ("process bootstrap...
// out of scope"); this package and the dispatcher package that frames it
// over a raw connection are this repository's concrete realization of
// that external interface.
package clientwire

import pb "github.com/golang/protobuf/proto"

// Opcode identifies which client operation a frame carries.
type Opcode byte

const (
	OpOpen Opcode = iota + 1
	OpRead
	OpWrite
	OpClose
	OpLseek
	OpUnlink
	OpClientDone
)

type OpenRequest struct {
	Path string `protobuf:"bytes,1,opt,name=path" json:"path,omitempty"`
	Mode int32  `protobuf:"varint,2,opt,name=mode" json:"mode,omitempty"`
}

func (m *OpenRequest) Reset()         { *m = OpenRequest{} }
func (m *OpenRequest) String() string { return pb.CompactTextString(m) }
func (*OpenRequest) ProtoMessage()    {}

type OpenResponse struct {
	Handle int64 `protobuf:"varint,1,opt,name=handle" json:"handle,omitempty"`
	Errno  int32 `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
}

func (m *OpenResponse) Reset()         { *m = OpenResponse{} }
func (m *OpenResponse) String() string { return pb.CompactTextString(m) }
func (*OpenResponse) ProtoMessage()    {}

type ReadRequest struct {
	Handle int64 `protobuf:"varint,1,opt,name=handle" json:"handle,omitempty"`
	Length int32 `protobuf:"varint,2,opt,name=length" json:"length,omitempty"`
}

func (m *ReadRequest) Reset()         { *m = ReadRequest{} }
func (m *ReadRequest) String() string { return pb.CompactTextString(m) }
func (*ReadRequest) ProtoMessage()    {}

type ReadResponse struct {
	Data  []byte `protobuf:"bytes,1,opt,name=data" json:"data,omitempty"`
	Errno int32  `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
}

func (m *ReadResponse) Reset()         { *m = ReadResponse{} }
func (m *ReadResponse) String() string { return pb.CompactTextString(m) }
func (*ReadResponse) ProtoMessage()    {}

type WriteRequest struct {
	Handle int64  `protobuf:"varint,1,opt,name=handle" json:"handle,omitempty"`
	Data   []byte `protobuf:"bytes,2,opt,name=data" json:"data,omitempty"`
}

func (m *WriteRequest) Reset()         { *m = WriteRequest{} }
func (m *WriteRequest) String() string { return pb.CompactTextString(m) }
func (*WriteRequest) ProtoMessage()    {}

type WriteResponse struct {
	N     int32 `protobuf:"varint,1,opt,name=n" json:"n,omitempty"`
	Errno int32 `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
}

func (m *WriteResponse) Reset()         { *m = WriteResponse{} }
func (m *WriteResponse) String() string { return pb.CompactTextString(m) }
func (*WriteResponse) ProtoMessage()    {}

type CloseRequest struct {
	Handle int64 `protobuf:"varint,1,opt,name=handle" json:"handle,omitempty"`
}

func (m *CloseRequest) Reset()         { *m = CloseRequest{} }
func (m *CloseRequest) String() string { return pb.CompactTextString(m) }
func (*CloseRequest) ProtoMessage()    {}

type CloseResponse struct {
	Errno int32 `protobuf:"varint,1,opt,name=errno" json:"errno,omitempty"`
}

func (m *CloseResponse) Reset()         { *m = CloseResponse{} }
func (m *CloseResponse) String() string { return pb.CompactTextString(m) }
func (*CloseResponse) ProtoMessage()    {}

type LseekRequest struct {
	Handle int64 `protobuf:"varint,1,opt,name=handle" json:"handle,omitempty"`
	Pos    int64 `protobuf:"varint,2,opt,name=pos" json:"pos,omitempty"`
	Whence int32 `protobuf:"varint,3,opt,name=whence" json:"whence,omitempty"`
}

func (m *LseekRequest) Reset()         { *m = LseekRequest{} }
func (m *LseekRequest) String() string { return pb.CompactTextString(m) }
func (*LseekRequest) ProtoMessage()    {}

type LseekResponse struct {
	Pos   int64 `protobuf:"varint,1,opt,name=pos" json:"pos,omitempty"`
	Errno int32 `protobuf:"varint,2,opt,name=errno" json:"errno,omitempty"`
}

func (m *LseekResponse) Reset()         { *m = LseekResponse{} }
func (m *LseekResponse) String() string { return pb.CompactTextString(m) }
func (*LseekResponse) ProtoMessage()    {}

type UnlinkRequest struct {
	Path string `protobuf:"bytes,1,opt,name=path" json:"path,omitempty"`
}

func (m *UnlinkRequest) Reset()         { *m = UnlinkRequest{} }
func (m *UnlinkRequest) String() string { return pb.CompactTextString(m) }
func (*UnlinkRequest) ProtoMessage()    {}

type UnlinkResponse struct {
	Errno int32 `protobuf:"varint,1,opt,name=errno" json:"errno,omitempty"`
}

func (m *UnlinkResponse) Reset()         { *m = UnlinkResponse{} }
func (m *UnlinkResponse) String() string { return pb.CompactTextString(m) }
func (*UnlinkResponse) ProtoMessage()    {}

// Marshal and Unmarshal delegate to the protobuf codec, matching rpcwire.
func Marshal(m pb.Message) ([]byte, error) { return pb.Marshal(m) }
func Unmarshal(b []byte, m pb.Message) error { return pb.Unmarshal(b, m) }
