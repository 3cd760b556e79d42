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

package transport

import "sync"

// piggybackCap is the single-packet heuristic capacity: frames coalesced
// below this size are likely to fit in one TCP segment.
const piggybackCap = 1300

// piggyback accumulates small outbound frames into a single buffer so a
// chatty exchange of small replies does not pay one send(2) per frame.
type piggyback struct {
	mu  sync.Mutex
	buf []byte
}

func newPiggyback() *piggyback {
	return &piggyback{buf: make([]byte, 0, piggybackCap)}
}

// append adds frame to the buffer, flushing first via send if it would not
// otherwise fit. A frame larger than the cap is never buffered; any pending
// bytes are flushed ahead of it so send order matches append order.
// Returns an error only if send fails.
func (p *piggyback) append(frame []byte, send func([]byte) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(frame) > piggybackCap {
		if err := p.flushLocked(send); err != nil {
			return err
		}
		return send(frame)
	}

	if len(p.buf)+len(frame) > piggybackCap {
		if err := p.flushLocked(send); err != nil {
			return err
		}
	}

	p.buf = append(p.buf, frame...)
	return nil
}

// flush writes any accumulated bytes as a single send and resets the
// buffer. It is a no-op when empty.
func (p *piggyback) flush(send func([]byte) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(send)
}

func (p *piggyback) flushLocked(send func([]byte) error) error {
	if len(p.buf) == 0 {
		return nil
	}

	err := send(p.buf)
	p.buf = p.buf[:0]
	return err
}

func (p *piggyback) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}
