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

// Package sockopt applies the handful of low-level socket options the
// listener and transport layers need and that net.Conn/net.ListenConfig do
// not expose directly: SO_REUSEADDR ahead of bind, IPV6_V6ONLY on IPv6
// listeners, and TCP_NODELAY on accepted connections.
package sockopt

import (
	"net"

	"github.com/sirupsen/logrus"
)

// ListenConfig returns a net.ListenConfig whose Control hook applies
// SO_REUSEADDR and, for IPv6 listeners, IPV6_V6ONLY, on the raw fd
// before bind(2) runs. Callers should use this in place of a bare
// net.ListenConfig{} wherever a listener is bound.
func ListenConfig() net.ListenConfig {
	return net.ListenConfig{Control: control}
}

// TuneConn disables Nagle's algorithm on accepted TCP connections, matching
// the original's disableNagle call, which favors latency over bandwidth for
// small, request/response-shaped frames.
func TuneConn(c net.Conn) {
	if tc, ok := c.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			logrus.WithError(err).Debug("sockopt: failed to disable Nagle's algorithm")
		}
	}
}
