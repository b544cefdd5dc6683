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

// Package wire implements the client<->server protocol message set: the
// two top-level tagged unions (ClientMessage, ServerMessage) and every
// value type they carry, each with its own ATN encoding.
package wire

import "github.com/pkg/errors"

func newError(format string, args ...any) error {
	return errors.Errorf("wire: "+format, args...)
}

var (
	errUnknownClientTag = errors.New("wire: unknown ClientMessage tag")
	errUnknownServerTag = errors.New("wire: unknown ServerMessage tag")
)
