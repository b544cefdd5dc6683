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

// Package registry is a synchronous, scoped observer dispatcher. It is
// the in-process counterpart of internal/pubsub's channel-backed Queue:
// same Subscribe/Publish/Unsubscribe shape, opaque uuid-keyed
// subscriptions, but callbacks run inline on the publishing goroutine
// instead of being handed to a buffered channel, so cache observers see
// row events strictly in arrival order.
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/relaydb/relay-client-go/internal/rescue"
)

// Scope narrows which events a subscription receives. An empty Table
// matches every table and every kind. With a Table set, AnyKind matches
// every kind of that table; otherwise only events whose kind equals Kind
// are delivered.
type Scope struct {
	Table   string
	Kind    uint8
	AnyKind bool
}

type entry[T any] struct {
	handle string
	scope  Scope
	cb     func(T)
}

// Registry dispatches events of type T to subscribers scoped by table
// name and event kind. The three supported scope shapes are
// (table, kind), (table, any kind), and (any table, any kind).
type Registry[T any] struct {
	mu        sync.RWMutex
	tableKind []entry[T]
	tableAny  []entry[T]
	global    []entry[T]
}

// New builds an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Subscribe registers cb for events matching scope and returns an
// opaque handle for later Unsubscribe.
func (r *Registry[T]) Subscribe(scope Scope, cb func(T)) string {
	h := uuid.NewString()
	e := entry[T]{handle: h, scope: scope, cb: cb}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case scope.Table == "":
		r.global = append(r.global, e)
	case scope.AnyKind:
		r.tableAny = append(r.tableAny, e)
	default:
		r.tableKind = append(r.tableKind, e)
	}
	return h
}

// Unsubscribe removes a previously returned handle. It is idempotent:
// unsubscribing an unknown or already-removed handle is a no-op.
func (r *Registry[T]) Unsubscribe(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tableKind = removeHandle(r.tableKind, handle)
	r.tableAny = removeHandle(r.tableAny, handle)
	r.global = removeHandle(r.global, handle)
}

func removeHandle[T any](entries []entry[T], handle string) []entry[T] {
	for i, e := range entries {
		if e.handle == handle {
			out := make([]entry[T], 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...)
		}
	}
	return entries
}

// Publish delivers event to every subscriber whose scope matches
// (table, kind), plus (table, any kind) subscribers, plus global
// subscribers. Matching subscribers are snapshotted under the read
// lock and invoked after it's released, so a callback that calls
// Subscribe or Unsubscribe never deadlocks against itself. Each
// callback runs behind rescue.HandleCrash: a panicking observer never
// takes down the caller's dispatch loop.
func (r *Registry[T]) Publish(table string, kind uint8, event T) {
	r.mu.RLock()
	var targets []func(T)
	for _, e := range r.tableKind {
		if e.scope.Table == table && e.scope.Kind == kind {
			targets = append(targets, e.cb)
		}
	}
	for _, e := range r.tableAny {
		if e.scope.Table == table {
			targets = append(targets, e.cb)
		}
	}
	for _, e := range r.global {
		targets = append(targets, e.cb)
	}
	r.mu.RUnlock()

	for _, cb := range targets {
		invoke(cb, event)
	}
}

func invoke[T any](cb func(T), event T) {
	defer rescue.HandleCrash()
	cb(event)
}

// Len reports the total number of live subscriptions, for tests and
// diagnostics.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tableKind) + len(r.tableAny) + len(r.global)
}
