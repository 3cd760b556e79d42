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

// Registry tracks every live Port so a signal handler can shut all of them
// down at once. The process-wide instance returned by GlobalRegistry is
// deliberately never torn down: Go has no static-destructor ordering
// problem, so keeping it alive for the process lifetime is a structural
// choice, not a workaround (see DESIGN.md).
type Registry struct {
	mu    sync.Mutex
	ports map[*Port]struct{}
}

// NewRegistry returns an empty Registry. Most callers want GlobalRegistry
// instead; NewRegistry exists for tests that need an isolated instance.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[*Port]struct{})}
}

// Insert registers p so a later CloseAll reaches it.
func (r *Registry) Insert(p *Port) {
	r.insert(p)
}

func (r *Registry) insert(p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports[p] = struct{}{}
}

func (r *Registry) erase(p *Port) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ports, p)
}

// CloseAll shuts down every registered Port. Ports shut down concurrently
// with CloseAll erase themselves and are simply skipped.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ports := make([]*Port, 0, len(r.ports))
	for p := range r.ports {
		ports = append(ports, p)
	}
	r.mu.Unlock()

	for _, p := range ports {
		p.Shutdown()
		r.erase(p)
	}
}

// Len reports the number of currently registered ports.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ports)
}

var globalRegistry = sync.OnceValue(func() *Registry {
	return NewRegistry()
})

// GlobalRegistry returns the process-wide Registry every Listener-accepted
// Port is inserted into.
func GlobalRegistry() *Registry {
	return globalRegistry()
}
