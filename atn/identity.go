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

package atn

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// Identity is a 256-bit opaque principal. Its wire form is 32 bytes
// little-endian; its display form is 64 hex characters big-endian. The
// two orderings round-trip losslessly into each other.
type Identity [32]byte

// ErrInvalidIdentity is returned by IdentityFromHex for malformed hex
// input and by IdentityFromHex/IdentityFromBytesLE for a wrong length.
var ErrInvalidIdentity = errors.New("atn: invalid identity")

// IdentityFromHex parses a 64-character big-endian hex string into an Identity.
func IdentityFromHex(s string) (Identity, error) {
	var id Identity
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(ErrInvalidIdentity, err.Error())
	}
	if len(b) != len(id) {
		return id, errors.Wrapf(ErrInvalidIdentity, "want %d bytes, got %d", len(id), len(b))
	}
	reverse(b)
	copy(id[:], b)
	return id, nil
}

// ToHexBE renders the Identity as 64 big-endian hex characters.
func (id Identity) ToHexBE() string {
	b := make([]byte, len(id))
	copy(b, id[:])
	reverse(b)
	return hex.EncodeToString(b)
}

// IdentityFromBytesLE builds an Identity from its 32-byte little-endian
// wire form.
func IdentityFromBytesLE(b []byte) (Identity, error) {
	var id Identity
	if len(b) != len(id) {
		return id, errors.Wrapf(ErrInvalidIdentity, "want %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ToBytesLE returns the 32-byte little-endian wire form.
func (id Identity) ToBytesLE() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

func (id Identity) String() string { return id.ToHexBE() }

// PutIdentity writes the Identity's wire form (32 bytes little-endian).
func (e *Encoder) PutIdentity(id Identity) {
	e.buf.Write(id[:])
}

// GetIdentity reads a 32-byte little-endian Identity.
func (d *Decoder) GetIdentity() (Identity, error) {
	var id Identity
	b, err := d.take(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// ConnectionId is a 64-bit session-scoped identifier; wire form is 8
// bytes little-endian.
type ConnectionId uint64

func (e *Encoder) PutConnectionId(c ConnectionId) { e.PutU64(uint64(c)) }

func (d *Decoder) GetConnectionId() (ConnectionId, error) {
	v, err := d.GetU64()
	return ConnectionId(v), err
}
