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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryScopedDispatch(t *testing.T) {
	r := New[string]()
	var tk, ta, g []string

	r.Subscribe(Scope{Table: "user", Kind: 1}, func(s string) { tk = append(tk, s) })
	r.Subscribe(Scope{Table: "user", AnyKind: true}, func(s string) { ta = append(ta, s) })
	r.Subscribe(Scope{AnyKind: true}, func(s string) { g = append(g, s) })

	r.Publish("user", 1, "a")
	assert.Equal(t, []string{"a"}, tk)
	assert.Equal(t, []string{"a"}, ta)
	assert.Equal(t, []string{"a"}, g)

	r.Publish("user", 2, "b")
	assert.Equal(t, []string{"a"}, tk) // kind mismatch, not delivered
	assert.Equal(t, []string{"a", "b"}, ta)
	assert.Equal(t, []string{"a", "b"}, g)

	r.Publish("account", 1, "c")
	assert.Equal(t, []string{"a"}, tk) // different table
	assert.Equal(t, []string{"a", "b"}, ta)
	assert.Equal(t, []string{"a", "b", "c"}, g)
}

func TestRegistryUnsubscribeIsIdempotent(t *testing.T) {
	r := New[int]()
	hits := 0
	h := r.Subscribe(Scope{AnyKind: true}, func(int) { hits++ })

	r.Publish("t", 0, 1)
	assert.Equal(t, 1, hits)

	r.Unsubscribe(h)
	r.Unsubscribe(h) // second call is a no-op, not an error
	r.Publish("t", 0, 1)
	assert.Equal(t, 1, hits)
}

func TestRegistryPanicInCallbackDoesNotStopOthers(t *testing.T) {
	r := New[int]()
	var secondRan bool
	r.Subscribe(Scope{AnyKind: true}, func(int) { panic("boom") })
	r.Subscribe(Scope{AnyKind: true}, func(int) { secondRan = true })

	assert.NotPanics(t, func() { r.Publish("t", 0, 1) })
	assert.True(t, secondRan)
}

func TestRegistryLen(t *testing.T) {
	r := New[int]()
	assert.Equal(t, 0, r.Len())
	h1 := r.Subscribe(Scope{Table: "t", Kind: 0}, func(int) {})
	r.Subscribe(Scope{AnyKind: true}, func(int) {})
	assert.Equal(t, 2, r.Len())
	r.Unsubscribe(h1)
	assert.Equal(t, 1, r.Len())
}
