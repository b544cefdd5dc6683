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

// Package session manages one persistent WebSocket connection to a
// database server module: connecting and reconnecting, correlating
// requests with their responses, replaying subscriptions across a
// reconnect, and feeding incoming row deltas into a cache.ClientCache.
package session

import (
	"time"

	"github.com/relaydb/relay-client-go/atn"
)

// Config holds everything needed to open and maintain a connection.
// Build one with Options rather than a struct literal, the way the
// rest of this module's ambient stack prefers functional configuration
// over exported, directly-mutable struct fields.
type Config struct {
	URL        string
	ModuleName string
	Token      string

	PingInterval          time.Duration
	ConnectTimeout         time.Duration
	MaxReconnectAttempts  int
	ReconnectDelay        time.Duration
	MaxReconnectDelay     time.Duration
	ReducerCallTimeout    time.Duration
	AutoConnect           bool

	OnIdentity   func(atn.Identity, atn.ConnectionId)
	OnConnect    func()
	OnDisconnect func(error)
}

// Option mutates a Config being built by NewConfig.
type Option func(*Config)

// WithToken sets the bearer token sent in the handshake's Authorization
// header.
func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

// WithPingInterval overrides the keep-alive ping cadence.
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) { c.PingInterval = d }
}

// WithConnectTimeout bounds how long the initial WebSocket handshake
// and the wait for IdentityToken may take.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithMaxReconnectAttempts bounds how many times the client retries a
// dropped connection before giving up and surfacing ErrReconnectFailed.
// A value <= 0 disables reconnection: the first dropped connection goes
// straight to StateDisconnected.
func WithMaxReconnectAttempts(n int) Option {
	return func(c *Config) { c.MaxReconnectAttempts = n }
}

// WithOnIdentity registers a callback fired with the server-assigned
// identity and connection id once a handshake (initial or post-reconnect)
// completes, before OnConnect.
func WithOnIdentity(cb func(atn.Identity, atn.ConnectionId)) Option {
	return func(c *Config) { c.OnIdentity = cb }
}

// WithOnConnect registers a callback fired after OnIdentity once a
// handshake (initial or post-reconnect) completes and subscriptions, if
// any, have been replayed.
func WithOnConnect(cb func()) Option {
	return func(c *Config) { c.OnConnect = cb }
}

// WithOnDisconnect registers a callback fired when the connection is
// closed: nil on an explicit Disconnect, ErrReconnectFailed-wrapped
// otherwise once the reconnect loop gives up.
func WithOnDisconnect(cb func(error)) Option {
	return func(c *Config) { c.OnDisconnect = cb }
}

// WithReconnectDelay sets the base delay for the exponential backoff
// schedule: delayForAttempt(k) = min(base * 2^k, max).
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Config) { c.ReconnectDelay = d }
}

// WithMaxReconnectDelay caps the backoff schedule computed from
// ReconnectDelay.
func WithMaxReconnectDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxReconnectDelay = d }
}

// WithReducerCallTimeout bounds how long CallReducer/CallProcedure wait
// for a matching TransactionUpdate/ProcedureResult before failing with
// ErrReducerTimeout.
func WithReducerCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReducerCallTimeout = d }
}

// WithAutoConnect controls whether NewConnection dials immediately
// (true, the default) or waits for an explicit Connect call.
func WithAutoConnect(b bool) Option {
	return func(c *Config) { c.AutoConnect = b }
}

func defaultConfig() Config {
	return Config{
		PingInterval:         15 * time.Second,
		ConnectTimeout:       10 * time.Second,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       1 * time.Second,
		MaxReconnectDelay:    30 * time.Second,
		ReducerCallTimeout:   30 * time.Second,
		AutoConnect:          true,
	}
}

// NewConfig builds a Config with the given URL and module name, applying
// opts over the package defaults.
func NewConfig(url, moduleName string, opts ...Option) Config {
	c := defaultConfig()
	c.URL = url
	c.ModuleName = moduleName
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// delayForAttempt computes the backoff delay before reconnect attempt k
// (0-indexed): min(base * 2^k, max). This is the schedule property
// tests assert against directly.
func delayForAttempt(base, max time.Duration, k int) time.Duration {
	if k < 0 {
		k = 0
	}
	if k > 32 { // guard against overflowing time.Duration's shift
		return max
	}
	d := base << uint(k)
	if d <= 0 || d > max {
		return max
	}
	return d
}
