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

// Package atn implements the Algebraic Type Notation binary codec: a
// streaming, schema-agnostic encoder/decoder for the primitives, strings,
// byte arrays, sequences, optionals, products and sums that make up the
// wire format of every higher-level message in this module.
package atn

import "github.com/pkg/errors"

// Sentinel decode/encode failures. Callers compare with errors.Is; the
// wrapped cause (field name, offset, byte count) is for diagnostics only
// and must never be parsed by callers.
var (
	// ErrUnexpectedEOF is returned when the cursor would advance past the
	// end of the decode buffer.
	ErrUnexpectedEOF = errors.New("atn: unexpected end of data")

	// ErrInvalidData is returned for a bool byte outside {0,1} or an
	// optional tag outside {0,1}.
	ErrInvalidData = errors.New("atn: invalid data")

	// ErrInvalidEncoding is returned when a string payload is not valid
	// UTF-8.
	ErrInvalidEncoding = errors.New("atn: invalid encoding")

	// ErrInvalidEnumTag is returned when a sum type's variant tag is not
	// one of the tags the caller registered as valid.
	ErrInvalidEnumTag = errors.New("atn: invalid enum tag")

	// ErrOverflow is returned when a u32-prefixed container's length does
	// not fit in a uint32.
	ErrOverflow = errors.New("atn: length overflow")
)

func wrapf(cause error, format string, args ...any) error {
	return errors.Wrapf(cause, format, args...)
}
