// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatcher

import (
	"encoding/binary"
	"io"

	pb "github.com/golang/protobuf/proto"
	"github.com/jacoboyy/cachefs/clientwire"
)

// Frame wire format: [1-byte opcode][4-byte big-endian length][payload].
// One request frame elicits exactly one response frame carrying the same
// opcode, mirroring the request/response shape of rpcwire's origin RPCs.

func readFrame(r io.Reader) (clientwire.Opcode, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, err
	}
	op := clientwire.Opcode(header[0])
	n := binary.BigEndian.Uint32(header[1:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return op, payload, nil
}

func writeFrame(w io.Writer, op clientwire.Opcode, m pb.Message) error {
	payload, err := clientwire.Marshal(m)
	if err != nil {
		return err
	}
	var header [5]byte
	header[0] = byte(op)
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}
