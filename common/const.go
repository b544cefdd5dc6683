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

package common

const (
	// App is the metrics/log namespace for this client library.
	App = "relay_client"

	// Version is the client library version, reported in the
	// handshake's User-Agent header (see UserAgent) when no version was
	// injected at link time.
	Version = "v0.1.0"

	// DefaultOutgoingBufferSize is a 4 KiB size for outgoing frame
	// buffers. Nothing in the module reads it: atn.Encoder takes its
	// buffers from bytebufferpool, which sizes them itself.
	DefaultOutgoingBufferSize = 4096
)
