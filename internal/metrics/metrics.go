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

// Package metrics holds the client's optional Prometheus instruments.
// Nothing in the session or cache packages requires a scrape endpoint
// to be registered; these collectors simply register themselves against
// the default registry the way the rest of the ecosystem does, and an
// embedding application is free to ignore them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relaydb/relay-client-go/common"
)

var (
	// FramesSent counts client->server frames written to the socket.
	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frames_sent_total",
			Help:      "Client messages sent total",
		},
	)

	// FramesReceived counts server->client frames read off the socket,
	// labeled by decoded ServerMessage variant name.
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frames_received_total",
			Help:      "Server messages received total",
		},
		[]string{"message"},
	)

	// FrameDecodeErrors counts frames dropped because they failed to
	// decode as a known ServerMessage variant.
	FrameDecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frame_decode_errors_total",
			Help:      "Server frames that failed to decode total",
		},
	)

	// ReconnectAttempts counts reconnection attempts made by the
	// session's backoff loop.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts total",
		},
	)

	// ConnectionState reports 1 while a WebSocket connection is
	// established, 0 otherwise.
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "connection_state",
			Help:      "1 if connected, 0 otherwise",
		},
	)

	// RowsCached reports the total number of rows held across every
	// table in the client cache.
	RowsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "rows_cached",
			Help:      "Rows currently held in the client cache",
		},
	)

	// ObserverPanicsTotal counts panics recovered from user-supplied
	// cache observer callbacks.
	ObserverPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "observer_panics_total",
			Help:      "Cache observer callback panics total",
		},
	)

	// PendingReducerCalls reports the number of requests currently
	// awaiting a server response: reducer/procedure calls as well as
	// subscribe and unsubscribe requests, which share the same registry.
	PendingReducerCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "pending_reducer_calls",
			Help:      "Reducer calls and subscription requests awaiting a server response",
		},
	)

	// UptimeSeconds reports how long this process has held the
	// package-level common.Started() timestamp.
	UptimeSeconds = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime_seconds",
			Help:      "Seconds since this client library was initialized",
		},
		func() float64 { return float64(common.Uptime()) },
	)
)
