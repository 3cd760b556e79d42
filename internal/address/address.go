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

// Package address expands a host specification into the concrete endpoints
// a listener should bind, or a forwarder should dial.
package address

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultUnixSocketDir is the directory stale Unix-domain socket paths are
// derived from. The original hard-codes "/tmp"; here it is a variable so a
// sandboxed test run, or a rootless deployment, can override it.
var DefaultUnixSocketDir = "/tmp"

// UnixSocketPattern is the fmt pattern used to build a Unix-domain socket
// path from a port number, matching the original's "/tmp/mongodb-<port>.sock".
var UnixSocketPattern = "mongodb-%d.sock"

// Network identifies the address family of an Endpoint.
type Network uint8

const (
	NetworkTCP4 Network = iota
	NetworkTCP6
	NetworkUnix
)

func (n Network) String() string {
	switch n {
	case NetworkTCP4:
		return "tcp4"
	case NetworkTCP6:
		return "tcp6"
	case NetworkUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// Endpoint is one concrete place to bind or dial.
type Endpoint struct {
	network Network
	host    string
	port    int
}

func (e Endpoint) Network() Network { return e.network }

// UnixPath returns the filesystem path for a Unix-domain Endpoint, or "" for
// any other Network.
func (e Endpoint) UnixPath() string {
	if e.network != NetworkUnix {
		return ""
	}
	return e.host
}

// Addr returns the dial/listen address net.Dial and net.Listen expect.
func (e Endpoint) Addr() string {
	if e.network == NetworkUnix {
		return e.host
	}
	if e.network == NetworkTCP6 {
		return fmt.Sprintf("[%s]:%d", e.host, e.port)
	}
	return fmt.Sprintf("%s:%d", e.host, e.port)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s://%s", e.network, e.Addr())
}

// Options configures Resolve's optional, platform-dependent behavior.
type Options struct {
	// IPv6Enabled reports whether the host can bind "[::]"; when false, the
	// wildcard expansion for an empty hostSpec skips the IPv6 endpoint.
	IPv6Enabled bool
	// UnixEnabled allows disabling the Unix-domain endpoints entirely,
	// matching the original's "unless Unix sockets are globally disabled".
	UnixEnabled bool
}

func unixEndpoint(port int, dir string) Endpoint {
	if dir == "" {
		dir = DefaultUnixSocketDir
	}
	return Endpoint{
		network: NetworkUnix,
		host:    strings.TrimRight(dir, "/") + "/" + fmt.Sprintf(UnixSocketPattern, port),
	}
}

// Resolve expands hostSpec into the ordered list of Endpoint values a
// listener should bind (or, for a single-host spec, a forwarder should
// dial). An empty hostSpec gives 0.0.0.0, then [::] when opt.IPv6Enabled,
// then the Unix socket when opt.UnixEnabled. A comma-separated hostSpec gives
// one endpoint per host, each 127.0.0.1 or 0.0.0.0 entry followed by the Unix
// socket when opt.UnixEnabled. Order is preserved and duplicates are never
// removed.
func Resolve(hostSpec string, port int, opt Options) ([]Endpoint, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("address: port out of range: %d", port)
	}

	if strings.TrimSpace(hostSpec) == "" {
		eps := []Endpoint{{network: NetworkTCP4, host: "0.0.0.0", port: port}}

		if opt.IPv6Enabled {
			eps = append(eps, Endpoint{network: NetworkTCP6, host: "::", port: port})
		}

		if opt.UnixEnabled {
			eps = append(eps, unixEndpoint(port, ""))
		}

		return eps, nil
	}

	var eps []Endpoint

	for _, h := range strings.Split(hostSpec, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}

		eps = append(eps, hostEndpoint(h, port))

		if opt.UnixEnabled && (h == "127.0.0.1" || h == "0.0.0.0") {
			eps = append(eps, unixEndpoint(port, ""))
		}
	}

	return eps, nil
}

func hostEndpoint(host string, port int) Endpoint {
	if strings.Contains(host, ":") {
		return Endpoint{network: NetworkTCP6, host: host, port: port}
	}
	return Endpoint{network: NetworkTCP4, host: host, port: port}
}

// ParseHostPort splits a "host:port" forwarder destination, as taken from
// the --dest CLI flag, into a single-entry Resolve call.
func ParseHostPort(hostPort string) (host string, port int, err error) {
	idx := strings.LastIndex(hostPort, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("address: missing port in %q", hostPort)
	}

	host = hostPort[:idx]
	p, err := strconv.Atoi(hostPort[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("address: invalid port in %q: %w", hostPort, err)
	}

	return host, p, nil
}
