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

// Package metrics exposes the bridge's runtime counters as Prometheus
// collectors: open connections, relayed frames, piggyback flushes, and
// upstream connect failures.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the collectors registered against one prometheus.Registerer.
type Metrics struct {
	openConnections prometheus.Gauge
	framesRelayed   *prometheus.CounterVec
	connectFailures prometheus.Counter
	piggybackFlush  prometheus.Counter
}

// New builds and registers the bridge's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mongobridge",
			Name:      "open_connections",
			Help:      "Number of client connections currently being relayed.",
		}),
		framesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mongobridge",
			Name:      "frames_relayed_total",
			Help:      "Number of wire frames relayed to the upstream, by operation code.",
		}, []string{"op"}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mongobridge",
			Name:      "upstream_connect_failures_total",
			Help:      "Number of failed upstream connect attempts.",
		}),
		piggybackFlush: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mongobridge",
			Name:      "piggyback_flushes_total",
			Help:      "Number of times a port's piggyback buffer was flushed.",
		}),
	}

	reg.MustRegister(m.openConnections, m.framesRelayed, m.connectFailures, m.piggybackFlush)
	return m
}

func (m *Metrics) ConnectionOpened() { m.openConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.openConnections.Dec() }

func (m *Metrics) FrameRelayed(op string) { m.framesRelayed.WithLabelValues(op).Inc() }

func (m *Metrics) ConnectFailed() { m.connectFailures.Inc() }

// PiggybackFlushed increments piggyback_flushes_total. Nothing in this module
// calls it: transport.Port does not report its flushes, so the counter stays
// at zero.
func (m *Metrics) PiggybackFlushed() { m.piggybackFlush.Inc() }
