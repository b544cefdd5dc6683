// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"sync"
	"sync/atomic"

	"github.com/relaydb/relay-client-go/internal/metrics"
)

// requestIDGen hands out request ids as a monotonically wrapping
// uint32 counter. Wrapping is fine: the only requirement is that no two
// concurrently outstanding calls share an id, not that ids never repeat
// across the connection's lifetime.
type requestIDGen struct {
	next atomic.Uint32
}

func (g *requestIDGen) nextID() uint32 {
	return g.next.Add(1)
}

// pendingCalls correlates outgoing requestIDs with the goroutine
// awaiting that request's server response.
type pendingCalls struct {
	mu      sync.Mutex
	waiters map[uint32]chan any
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{waiters: make(map[uint32]chan any)}
}

// register allocates a waiter channel for requestID. The caller must
// eventually call deliver or forget exactly once for this id (drain
// also releases it).
func (p *pendingCalls) register(requestID uint32) chan any {
	ch := make(chan any, 1)
	p.mu.Lock()
	p.waiters[requestID] = ch
	p.mu.Unlock()
	metrics.PendingReducerCalls.Set(float64(p.len()))
	return ch
}

func (p *pendingCalls) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// deliver hands result to requestID's waiter, if one is still
// registered. It reports whether a waiter was found.
func (p *pendingCalls) deliver(requestID uint32, result any) bool {
	p.mu.Lock()
	ch, ok := p.waiters[requestID]
	if ok {
		delete(p.waiters, requestID)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	metrics.PendingReducerCalls.Set(float64(p.len()))
	return true
}

// forget removes requestID's waiter without delivering anything, used
// once a call's context is done or the call times out.
func (p *pendingCalls) forget(requestID uint32) {
	p.mu.Lock()
	delete(p.waiters, requestID)
	p.mu.Unlock()
	metrics.PendingReducerCalls.Set(float64(p.len()))
}

// drain delivers err to every outstanding waiter and empties the
// registry, used when the connection drops.
func (p *pendingCalls) drain(err error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[uint32]chan any)
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	metrics.PendingReducerCalls.Set(0)
}
