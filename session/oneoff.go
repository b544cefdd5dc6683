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
	"crypto/rand"
	"sync"
)

// pendingOneOff correlates OneOffQuery requests with their
// OneOffQueryResponse by the client-chosen message id, since that
// message carries no numeric request id of its own.
type pendingOneOff struct {
	mu      sync.Mutex
	waiters map[string]chan any
}

func newPendingOneOff() *pendingOneOff {
	return &pendingOneOff{waiters: make(map[string]chan any)}
}

func newMessageID() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

func (p *pendingOneOff) register(id []byte) chan any {
	ch := make(chan any, 1)
	p.mu.Lock()
	p.waiters[string(id)] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingOneOff) deliver(id []byte, result any) bool {
	p.mu.Lock()
	ch, ok := p.waiters[string(id)]
	if ok {
		delete(p.waiters, string(id))
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- result
	return true
}

func (p *pendingOneOff) forget(id []byte) {
	p.mu.Lock()
	delete(p.waiters, string(id))
	p.mu.Unlock()
}

func (p *pendingOneOff) drain(err error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[string]chan any)
	p.mu.Unlock()
	for _, ch := range waiters {
		ch <- err
	}
}
