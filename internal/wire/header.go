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

// Package wire implements the document-database wire protocol framing: the
// fixed 16-byte header, operation codes, and the two liveness probes a peer
// may send in place of a real frame.
package wire

import (
	"encoding/binary"
	"fmt"

	liberr "github.com/nabbar/mongobridge/errors"
)

// Error codes for this package, registered with the shared errors registry.
const (
	ErrBadMessageLength liberr.CodeError = liberr.MinPkgWire + iota + 1
)

func init() {
	liberr.RegisterIdFctMessage(liberr.MinPkgWire, func(code liberr.CodeError) string {
		switch code {
		case ErrBadMessageLength:
			return "message length out of range"
		default:
			return ""
		}
	})
}

const (
	// HeaderLen is the size in bytes of the fixed frame header.
	HeaderLen = 16

	// MaxFrameLen is the largest legal value for Header.MessageLen, the full
	// frame including the header itself.
	MaxFrameLen = 16 * 1000 * 1000

	// MinFrameLen is the smallest legal value for Header.MessageLen: a frame
	// can never be shorter than its own header.
	MinFrameLen = HeaderLen

	// allocUnit is the granularity frame buffers are rounded up to, so a
	// connection sending many similarly-sized frames reuses allocations.
	allocUnit = 1024
)

// EndianProbeLen is the sentinel value a peer sends as the first 4 bytes of
// a connection to discover this endpoint's byte order. It is never a valid
// MessageLen since -1 cannot satisfy MinFrameLen.
const EndianProbeLen int32 = -1

// EndianProbeReply is written back verbatim (as four bytes, native order)
// in response to EndianProbeLen, as four little-endian bytes.
const EndianProbeReply uint32 = 0x10203040

// HTTPProbeLen is the sentinel value produced when the first 4 bytes on the
// wire are actually the ASCII text "GET " read as a little-endian int32.
// A client speaking HTTP instead of the wire protocol lands here.
const HTTPProbeLen int32 = 542393671

// OpCode identifies the kind of payload carried by a Message.
type OpCode int32

const (
	OpReply      OpCode = 1
	OpMsg        OpCode = 1000
	OpUpdate     OpCode = 2001
	OpInsert     OpCode = 2002
	OpQuery      OpCode = 2004
	OpGetMore    OpCode = 2005
	OpDelete     OpCode = 2006
	OpKillCursor OpCode = 2007
)

// ExpectsReply reports whether a Message bearing this OpCode is answered by
// the receiving side, as opposed to being a fire-and-forget write.
func (o OpCode) ExpectsReply() bool {
	switch o {
	case OpQuery, OpGetMore, OpMsg:
		return true
	default:
		return false
	}
}

func (o OpCode) String() string {
	switch o {
	case OpReply:
		return "reply"
	case OpMsg:
		return "msg"
	case OpUpdate:
		return "update"
	case OpInsert:
		return "insert"
	case OpQuery:
		return "query"
	case OpGetMore:
		return "getMore"
	case OpDelete:
		return "delete"
	case OpKillCursor:
		return "killCursors"
	default:
		return "unknown"
	}
}

// Header is the 16-byte little-endian prefix carried by every frame:
// total message length (including the header), the request id, the id of
// the request this frame answers (0 when none), and the operation code.
type Header struct {
	MessageLen int32
	RequestID  int32
	ResponseTo int32
	OpCode     OpCode
}

// Encode writes h into the first HeaderLen bytes of buf. buf must have
// length >= HeaderLen.
func (h Header) Encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.MessageLen))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.RequestID))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.ResponseTo))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(h.OpCode))
}

// DecodeHeader reads a Header from the first HeaderLen bytes of buf.
func DecodeHeader(buf []byte) Header {
	return Header{
		MessageLen: int32(binary.LittleEndian.Uint32(buf[0:4])),
		RequestID:  int32(binary.LittleEndian.Uint32(buf[4:8])),
		ResponseTo: int32(binary.LittleEndian.Uint32(buf[8:12])),
		OpCode:     OpCode(int32(binary.LittleEndian.Uint32(buf[12:16]))),
	}
}

// Validate checks MessageLen against the legal frame size range. It does
// not interpret EndianProbeLen or HTTPProbeLen, both of which are decided
// from the raw 4-byte length prefix before a Header is ever built.
func (h Header) Validate() error {
	if h.MessageLen < MinFrameLen || h.MessageLen > MaxFrameLen {
		return ErrBadMessageLength.Error(fmt.Errorf("len=%d", h.MessageLen))
	}
	return nil
}

// AllocSize rounds n up to the next allocUnit boundary (n <= 0 gives
// allocUnit), matching the original's buffer pooling strategy of allocating
// in fixed-size steps
// rather than one allocation per distinct frame size. Callers that read a
// frame body of length n should allocate AllocSize(n) and slice down to n,
// so repeated reads of similarly-sized frames reuse allocator size classes.
func AllocSize(n int32) int32 {
	if n <= 0 {
		return allocUnit
	}
	if rem := n % allocUnit; rem != 0 {
		return n + (allocUnit - rem)
	}
	return n
}
