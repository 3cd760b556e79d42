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

// Package forwarder relays each accepted client connection to a single
// configured upstream, preserving request/response correlation across the
// hop.
package forwarder

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nabbar/mongobridge/duration"
	"github.com/nabbar/mongobridge/internal/address"
	"github.com/nabbar/mongobridge/internal/listener"
	"github.com/nabbar/mongobridge/internal/metrics"
	"github.com/nabbar/mongobridge/internal/transport"
)

// ReconnectInterval is the fixed delay between upstream connect attempts,
// matching the original's sleepmillis(500) retry loop. It is the default
// used when Proxy.ReconnectInterval is zero.
const ReconnectInterval = 500 * time.Millisecond

// Proxy relays accepted client connections to a fixed upstream endpoint.
type Proxy struct {
	Upstream address.Endpoint
	IDs      *transport.IDGenerator
	Metrics  *metrics.Metrics
	Log      *logrus.Logger

	// ReconnectInterval overrides the package default delay between
	// upstream connect attempts. Zero means use ReconnectInterval.
	ReconnectInterval duration.Duration

	// ConnectTimeout overrides listener.DefaultConnectTimeout for each
	// individual dial attempt. Zero means use the listener's default.
	ConnectTimeout duration.Duration
}

func (p *Proxy) reconnectInterval() time.Duration {
	if p.ReconnectInterval <= 0 {
		return ReconnectInterval
	}
	return p.ReconnectInterval.Time()
}

func (p *Proxy) log() *logrus.Logger {
	if p.Log != nil {
		return p.Log
	}
	return logrus.StandardLogger()
}

// dialUpstream retries ConnectTimeout every ReconnectInterval until it
// succeeds or ctx is canceled.
func (p *Proxy) dialUpstream(ctx context.Context) (net.Conn, error) {
	b := backoff.WithContext(backoff.NewConstantBackOff(p.reconnectInterval()), ctx)

	var conn net.Conn
	op := func() error {
		c, err := listener.ConnectTimeout(ctx, p.Upstream, p.ConnectTimeout.Time())
		if err != nil {
			p.log().WithError(err).Debug("forwarder: upstream connect failed, retrying")
			if p.Metrics != nil {
				p.Metrics.ConnectFailed()
			}
			return err
		}
		conn = c
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	return conn, nil
}

// Serve relays clientConn to the configured upstream until either side
// closes or ctx is canceled. It registers the client Port in the global
// registry for the duration of the relay and always de-registers it on
// return.
func (p *Proxy) Serve(ctx context.Context, clientConn net.Conn) {
	// corrID is purely an operator-facing correlation id for log lines tying
	// one relayed connection's client and upstream legs together. It never
	// appears on the wire: the protocol correlates frames by RequestID.
	corrID := uuid.NewString()
	log := p.log().WithField("conn", corrID)

	client := transport.NewPort(clientConn, p.IDs)
	transport.GlobalRegistry().Insert(client)
	defer client.Shutdown()

	if p.Metrics != nil {
		p.Metrics.ConnectionOpened()
		defer p.Metrics.ConnectionClosed()
	}

	log.WithField("remote", client.RemoteAddr()).Debug("forwarder: accepted client connection")

	upConn, err := p.dialUpstream(ctx)
	if err != nil {
		log.WithError(err).Warn("forwarder: giving up on upstream connect")
		return
	}

	upstream := transport.NewPort(upConn, p.IDs)
	defer upstream.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m, err := client.Recv(ctx)
		if err != nil {
			log.Debug("forwarder: client connection ended")
			return
		}

		oldID := m.Header.RequestID

		if m.Header.OpCode.ExpectsReply() {
			resp, err := upstream.Call(ctx, m)
			if err != nil {
				log.WithError(err).Warn("forwarder: upstream call failed")
				return
			}
			if err := client.Reply(ctx, m, resp); err != nil {
				log.WithError(err).Warn("forwarder: failed replying to client")
				return
			}
		} else {
			if err := upstream.Say(ctx, m, oldID); err != nil {
				log.WithError(err).Warn("forwarder: failed forwarding to upstream")
				return
			}
		}

		if p.Metrics != nil {
			p.Metrics.FrameRelayed(m.Header.OpCode.String())
		}
	}
}
