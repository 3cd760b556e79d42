/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package transport implements MessagingPort: the framed, piggyback-aware
// request/response layer built directly on top of a net.Conn.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/mongobridge/internal/sockopt"
	"github.com/nabbar/mongobridge/internal/wire"
)

const httpProbeResponseBody = "This server only accepts the native wire protocol. Use the HTTP diagnostic port instead.\n"

// Port is a MessagingPort: a framed, bidirectional channel over one
// net.Conn, supporting fire-and-forget sends, correlated request/response
// calls, and piggybacked replies.
type Port struct {
	conn net.Conn
	ids  *IDGenerator

	writeMu sync.Mutex
	pig     *piggyback

	closed atomic.Bool
}

// NewPort wraps conn as a Port. ids may be shared across ports that belong
// to the same process-wide id space (it is safe for concurrent use).
func NewPort(conn net.Conn, ids *IDGenerator) *Port {
	sockopt.TuneConn(conn)

	return &Port{
		conn: conn,
		ids:  ids,
		pig:  newPiggyback(),
	}
}

// RemoteAddr returns the address of the peer, or "" once the port is closed.
func (p *Port) RemoteAddr() string {
	if p.conn == nil || p.closed.Load() {
		return ""
	}
	return p.conn.RemoteAddr().String()
}

// Shutdown closes the underlying connection. Safe to call more than once
// and concurrently with Recv/Say/Call; in-flight operations observe the
// closed connection and fail with ErrSocketFailure.
func (p *Port) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	_ = p.conn.Close()
	GlobalRegistry().erase(p)
}

// Closed reports whether Shutdown has been called.
func (p *Port) Closed() bool {
	return p.closed.Load()
}

func (p *Port) rawSend(b []byte) error {
	if p.closed.Load() {
		return ErrPortClosed.Error()
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := p.conn.Write(b); err != nil {
		return ErrSocketFailure.Error(err)
	}
	return nil
}

// Recv reads one frame from the connection. It transparently answers the
// endian probe (restarting once) and the HTTP probe (closing the
// connection and returning an error), matching §4.3 of the framing
// contract.
func (p *Port) Recv(ctx context.Context) (wire.Message, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(p.conn, lenBuf[:]); err != nil {
			return wire.Message{}, ErrSocketFailure.Error(err)
		}

		length := int32(binary.LittleEndian.Uint32(lenBuf[:]))

		switch length {
		case wire.EndianProbeLen:
			var reply [4]byte
			binary.LittleEndian.PutUint32(reply[:], wire.EndianProbeReply)
			if err := p.rawSend(reply[:]); err != nil {
				return wire.Message{}, err
			}
			continue

		case wire.HTTPProbeLen:
			p.respondHTTPProbe()
			return wire.Message{}, ErrHTTPProbe.Error()
		}

		h := wire.Header{MessageLen: length}
		if err := h.Validate(); err != nil {
			return wire.Message{}, err
		}

		rest := make([]byte, wire.HeaderLen-4)
		if _, err := io.ReadFull(p.conn, rest); err != nil {
			return wire.Message{}, ErrSocketFailure.Error(err)
		}

		full := append(append([]byte{}, lenBuf[:]...), rest...)
		hdr := wire.DecodeHeader(full)

		// Validate above already rejects MessageLen < HeaderLen, so bodyLen
		// here is always >= 0.
		bodyLen := hdr.MessageLen - wire.HeaderLen
		buf := make([]byte, wire.AllocSize(bodyLen))
		body := buf[:bodyLen]
		if _, err := io.ReadFull(p.conn, body); err != nil {
			return wire.Message{}, ErrSocketFailure.Error(err)
		}

		return wire.Message{Header: hdr, Body: body}, nil
	}

	return wire.Message{}, ErrSocketFailure.Error(fmt.Errorf("endian probe looped"))
}

func (p *Port) respondHTTPProbe() {
	resp := fmt.Sprintf(
		"HTTP/1.0 200 OK\r\nConnection: close\r\nContent-Type: text/plain\r\nContent-Length: %d\r\n\r\n%s",
		len(httpProbeResponseBody), httpProbeResponseBody,
	)
	if err := p.rawSend([]byte(resp)); err != nil {
		logrus.WithError(err).Debug("transport: failed writing http probe response")
	}
	p.Shutdown()
}

// Say sends m, assigning a fresh request id and the given responseTo. If a
// frame is waiting in the piggyback buffer (queued there by an earlier
// PiggyBack call), it is coalesced into the same packet as m when the two
// fit within piggybackCap (1300 bytes), and written just ahead of m
// otherwise; either way Say always results in an immediate write, unlike
// PiggyBack.
func (p *Port) Say(ctx context.Context, m wire.Message, responseTo int32) error {
	id := p.ids.Next(ctx)
	m = m.WithRequestID(int32(id)).WithResponseTo(responseTo)

	if err := p.pig.append(m.Encode(), p.rawSend); err != nil {
		return err
	}
	return p.pig.flush(p.rawSend)
}

// PiggyBack queues m to be combined with the next Say on this port instead
// of writing it immediately, letting a reply and an unsolicited follow-up
// message share one packet. Call Flush (or Say) to guarantee delivery if no
// further Say is expected.
func (p *Port) PiggyBack(ctx context.Context, m wire.Message, responseTo int32) error {
	id := p.ids.Next(ctx)
	m = m.WithRequestID(int32(id)).WithResponseTo(responseTo)
	return p.pig.append(m.Encode(), p.rawSend)
}

// Flush writes out any buffered piggyback bytes immediately.
func (p *Port) Flush() error {
	return p.pig.flush(p.rawSend)
}

// Call sends request and blocks until a frame answering it arrives. A
// reply whose ResponseTo does not match the request id is a protocol
// violation from the peer; see ErrResponseMismatch.
func (p *Port) Call(ctx context.Context, request wire.Message) (wire.Message, error) {
	id := p.ids.Next(ctx)
	request = request.WithRequestID(int32(id))

	if err := p.pig.flush(p.rawSend); err != nil {
		return wire.Message{}, err
	}
	if err := p.rawSend(request.Encode()); err != nil {
		return wire.Message{}, err
	}

	resp, err := p.Recv(ctx)
	if err != nil {
		return wire.Message{}, err
	}

	if resp.Header.ResponseTo != request.Header.RequestID {
		return wire.Message{}, ErrResponseMismatch.Error(fmt.Errorf(
			"want responseTo=%d got=%d", request.Header.RequestID, resp.Header.ResponseTo))
	}

	return resp, nil
}

// Reply answers a received Message with response, preserving the
// requester's id as responseTo.
func (p *Port) Reply(ctx context.Context, received wire.Message, response wire.Message) error {
	return p.Say(ctx, response, received.Header.RequestID)
}
