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

// Package rescue centralizes panic recovery for user-supplied callbacks
// (cache observers, reducer continuations) so a panicking observer
// cannot take down the session's read loop.
package rescue

import (
	"runtime"

	"github.com/relaydb/relay-client-go/internal/metrics"
	"github.com/relaydb/relay-client-go/logger"
)

var PanicHandlers = []func(any){
	incPanicCounter,
	logPanic,
}

func incPanicCounter(_ any) {
	metrics.ObserverPanicsTotal.Inc()
}

func logPanic(r any) {
	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("observer callback panicked: %s\n%s", r, stacktrace)
	} else {
		logger.Errorf("observer callback panicked: %#v (%v)\n%s", r, r, stacktrace)
	}
}

// HandleCrash recovers a panic in the current goroutine and runs every
// registered PanicHandler. It must be called via defer at the top of
// any function that invokes external callback code.
func HandleCrash() {
	if r := recover(); r != nil {
		for _, fn := range PanicHandlers {
			fn(r)
		}
	}
}
