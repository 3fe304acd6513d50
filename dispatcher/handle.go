// Copyright 2016 The Upspin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatcher

import (
	"context"
	"net"

	"github.com/jacoboyy/cachefs/clientwire"
	"github.com/jacoboyy/cachefs/errors"
	"github.com/jacoboyy/cachefs/session"
)

// serveOneFrame reads one request frame from conn, executes it against
// sess, and writes the corresponding response frame.
func serveOneFrame(ctx context.Context, conn net.Conn, sess *session.Session) error {
	op, payload, err := readFrame(conn)
	if err != nil {
		return err
	}

	switch op {
	case clientwire.OpOpen:
		var req clientwire.OpenRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp := &clientwire.OpenResponse{}
		h, err := sess.Open(ctx, req.Path, session.Mode(req.Mode))
		if err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		} else {
			resp.Handle = h
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpRead:
		var req clientwire.ReadRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		buf := make([]byte, req.Length)
		resp := &clientwire.ReadResponse{}
		n, err := sess.Read(req.Handle, buf)
		if err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		} else {
			resp.Data = buf[:n]
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpWrite:
		var req clientwire.WriteRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp := &clientwire.WriteResponse{}
		n, err := sess.Write(ctx, req.Handle, req.Data)
		if err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		} else {
			resp.N = int32(n)
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpClose:
		var req clientwire.CloseRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp := &clientwire.CloseResponse{}
		if err := sess.Close(ctx, req.Handle); err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpLseek:
		var req clientwire.LseekRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp := &clientwire.LseekResponse{}
		pos, err := sess.Lseek(req.Handle, req.Pos, session.Whence(req.Whence))
		if err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		} else {
			resp.Pos = pos
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpUnlink:
		var req clientwire.UnlinkRequest
		if err := clientwire.Unmarshal(payload, &req); err != nil {
			return err
		}
		resp := &clientwire.UnlinkResponse{}
		if err := sess.Unlink(ctx, req.Path); err != nil {
			resp.Errno = int32(errors.GetKind(err).Errno())
		}
		return writeFrame(conn, op, resp)

	case clientwire.OpClientDone:
		sess.ClientDone(ctx)
		return writeFrame(conn, op, &clientwire.CloseResponse{})

	default:
		return errors.E("dispatcher.serveOneFrame", errors.Invalid)
	}
}
