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

// Package tracing wraps the otel/trace API used to annotate a
// Connection's outgoing calls, independent of whichever SDK
// TracerProvider the host process installs (or doesn't).
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/relaydb/relay-client-go/session"

var tracer = trace.NewNoopTracerProvider().Tracer(instrumentationName)

// SetTracerProvider points future spans at provider. Call it once
// during process setup; safe to skip entirely, in which case spans are
// recorded by the no-op tracer and cost nothing.
func SetTracerProvider(provider trace.TracerProvider) {
	tracer = provider.Tracer(instrumentationName)
}

// StartSpan starts a span named name and returns the derived context
// and a func to end it, so callers can write:
//
//	ctx, end := tracing.StartSpan(ctx, "CallReducer")
//	defer end(&err)
func StartSpan(ctx context.Context, name string) (context.Context, func(errp *error)) {
	ctx, span := tracer.Start(ctx, name)
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
		}
		span.End()
	}
}
