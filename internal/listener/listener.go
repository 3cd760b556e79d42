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

// Package listener binds the address set resolved by internal/address and
// runs the accept loop that hands each new connection to the forwarder.
package listener

import (
	"context"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/mongobridge/errors"
	"github.com/nabbar/mongobridge/file/perm"
	"github.com/nabbar/mongobridge/internal/address"
	"github.com/nabbar/mongobridge/internal/sockopt"
)

const (
	ErrBind errors.CodeError = errors.MinPkgListener + iota + 1
	ErrAccept
)

func init() {
	errors.RegisterIdFctMessage(errors.MinPkgListener, func(code errors.CodeError) string {
		switch code {
		case ErrBind:
			return "failed to bind listener"
		case ErrAccept:
			return "accept loop terminated"
		default:
			return ""
		}
	})
}

// Backlog is a listen(2) backlog of 128. Nothing in this package passes it
// to the bound sockets: net.ListenConfig.Listen uses the operating system's
// default backlog.
const Backlog = 128

// Listener binds a set of address.Endpoint values and runs one accept loop
// goroutine per bound socket.
type Listener struct {
	log *logrus.Logger

	// UnixSocketPerm is applied via chmod to any bound unix socket file.
	// Zero leaves the mode at whatever the process umask produced.
	UnixSocketPerm perm.Perm
}

// New returns a Listener that logs through log, or logrus' standard logger
// when log is nil.
func New(log *logrus.Logger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{log: log}
}

func (l *Listener) bind(ctx context.Context, ep address.Endpoint) (net.Listener, error) {
	if ep.Network() == address.NetworkUnix {
		_ = os.Remove(ep.UnixPath())
	}

	lc := sockopt.ListenConfig()
	ln, err := lc.Listen(ctx, ep.Network().String(), ep.Addr())
	if err != nil {
		return nil, ErrBind.Error(err)
	}

	if ep.Network() == address.NetworkUnix && l.UnixSocketPerm != 0 {
		if err := os.Chmod(ep.UnixPath(), l.UnixSocketPerm.FileMode()); err != nil {
			l.log.WithError(err).Warn("listener: failed to chmod unix socket")
		}
	}

	return ln, nil
}

// ListenAndServe resolves hostSpec into endpoints, binds each, and accepts
// connections until ctx is canceled. accept is invoked once per accepted
// net.Conn, on its own goroutine, so a slow handler never stalls other
// connections.
//
// Cancelling ctx closes every bound listener, which unblocks their Accept
// calls; ListenAndServe returns once all accept loops have exited.
func (l *Listener) ListenAndServe(ctx context.Context, hostSpec string, port int, opt address.Options, accept func(net.Conn)) error {
	endpoints, err := address.Resolve(hostSpec, port, opt)
	if err != nil {
		return err
	}

	listeners := make([]net.Listener, 0, len(endpoints))
	for _, ep := range endpoints {
		ln, err := l.bind(ctx, ep)
		if err != nil {
			for _, prev := range listeners {
				_ = prev.Close()
			}
			return err
		}
		listeners = append(listeners, ln)
		l.log.WithField("address", ep.String()).Info("listener: bound")
	}

	var wg sync.WaitGroup
	for _, ln := range listeners {
		wg.Add(1)
		go func(ln net.Listener) {
			defer wg.Done()
			l.acceptLoop(ctx, ln, accept)
		}(ln)
	}

	go func() {
		<-ctx.Done()
		for _, ln := range listeners {
			_ = ln.Close()
		}
	}()

	wg.Wait()
	return nil
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener, accept func(net.Conn)) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.WithError(err).Warn("listener: accept failed, retrying")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		sockopt.TuneConn(conn)
		go accept(conn)
	}
}
