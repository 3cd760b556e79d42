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

package listener

import (
	"context"
	"net"
	"time"

	"github.com/nabbar/mongobridge/internal/address"
	"github.com/nabbar/mongobridge/internal/sockopt"
)

// DefaultConnectTimeout is the original's fixed 5000ms bound on the
// background connect race.
const DefaultConnectTimeout = 5000 * time.Millisecond

// ConnectTimeout dials ep, bounded by timeout (DefaultConnectTimeout when
// zero). The original races a background thread's blocking connect(2)
// against a timer and synchronously joins that thread on timeout so its
// stack frame stays valid; net.Dialer.DialContext gives the same bounded
// wait natively; canceling ctx (or the deadline elapsing) makes the
// in-flight connect attempt observe the cancellation and return, so there
// is nothing left to join.
func ConnectTimeout(ctx context.Context, ep address.Endpoint, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	dialer := net.Dialer{Timeout: timeout}

	conn, err := dialer.DialContext(ctx, ep.Network().String(), ep.Addr())
	if err != nil {
		return nil, err
	}

	sockopt.TuneConn(conn)
	return conn, nil
}
