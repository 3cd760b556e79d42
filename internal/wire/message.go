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

package wire

// Message is a single decoded frame: its Header plus the body bytes that
// follow it (the header itself is not repeated in Body).
type Message struct {
	Header Header
	Body   []byte
}

// Encode returns the full wire representation of m: header followed by
// body, ready to be written to a connection.
func (m Message) Encode() []byte {
	buf := make([]byte, HeaderLen+len(m.Body))
	h := m.Header
	h.MessageLen = int32(len(buf))
	h.Encode(buf[:HeaderLen])
	copy(buf[HeaderLen:], m.Body)
	return buf
}

// WithResponseTo returns a copy of m whose Header.ResponseTo is set to id,
// used by a Port replying to a call with the original requester's id.
func (m Message) WithResponseTo(id int32) Message {
	m.Header.ResponseTo = id
	return m
}

// WithRequestID returns a copy of m whose Header.RequestID is set to id.
func (m Message) WithRequestID(id int32) Message {
	m.Header.RequestID = id
	return m
}
