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

import "github.com/pkg/errors"

var (
	// ErrNotConnected is returned by any operation attempted while the
	// connection has no live transport: before Connect, after Disconnect,
	// and while reconnecting.
	ErrNotConnected = errors.New("session: not connected")
	// ErrConnectionFailed is returned when the initial dial or
	// handshake fails.
	ErrConnectionFailed = errors.New("session: connection failed")
	// ErrReconnectFailed is returned once MaxReconnectAttempts is
	// exhausted without a successful reconnect.
	ErrReconnectFailed = errors.New("session: reconnect attempts exhausted")
	// ErrReducerCallFailed wraps a reducer/procedure call that the
	// server explicitly rejected (UpdateStatus.Failed / ProcedureFailure).
	ErrReducerCallFailed = errors.New("session: reducer call failed")
	// ErrReducerTimeout is returned when ReducerCallTimeout elapses
	// before a matching response arrives.
	ErrReducerTimeout = errors.New("session: reducer call timed out")
	// ErrReducerOutOfEnergy wraps an UpdateStatus.OutOfEnergy response.
	ErrReducerOutOfEnergy = errors.New("session: reducer call ran out of energy")
	// ErrSubscriptionFailed wraps a SubscriptionError carrying a
	// request id (a specific query failed, rather than the drop-all
	// case).
	ErrSubscriptionFailed = errors.New("session: subscription failed")
	// ErrMissingConfiguration is returned by NewConnection when
	// required configuration (URL, ModuleName) is absent.
	ErrMissingConfiguration = errors.New("session: missing required configuration")
	// ErrConnectionClosed is returned to callers awaiting a response
	// when the connection is torn down before the server replies.
	ErrConnectionClosed = errors.New("session: connection closed")
	// ErrCancelled is returned when the caller's context is done before
	// a response arrives.
	ErrCancelled = errors.New("session: call cancelled")
)
