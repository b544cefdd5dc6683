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
	"math"
	"unicode/utf8"

	"github.com/valyala/bytebufferpool"
)

// Encoder serializes primitive and composite ATN values into a single
// growable buffer. A product (struct) is just the concatenation of its
// field encodings in declaration order; a sum (tagged union) is a PutU8
// tag followed by the variant payload. Encoder carries no schema — the
// caller supplies structure by calling Put* in order.
type Encoder struct {
	buf *bytebufferpool.ByteBuffer
}

// NewEncoder returns an Encoder backed by a pooled buffer. Callers that
// encode many small messages in a hot loop should call Release when done
// to return the buffer to the pool.
func NewEncoder() *Encoder {
	return &Encoder{buf: bytebufferpool.Get()}
}

// Release returns the underlying buffer to the pool. The Encoder must not
// be used afterward.
func (e *Encoder) Release() {
	bytebufferpool.Put(e.buf)
	e.buf = nil
}

// Bytes returns the encoded bytes accumulated so far. The slice is only
// valid until the next Put* call or Release.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len returns the number of bytes encoded so far.
func (e *Encoder) Len() int {
	return e.buf.Len()
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.buf.WriteByte(0x01)
		return
	}
	e.buf.WriteByte(0x00)
}

func (e *Encoder) PutU8(v uint8)   { e.buf.WriteByte(v) }
func (e *Encoder) PutI8(v int8)    { e.buf.WriteByte(byte(v)) }

func (e *Encoder) PutU16(v uint16) {
	e.buf.Write([]byte{byte(v), byte(v >> 8)})
}

func (e *Encoder) PutI16(v int16) { e.PutU16(uint16(v)) }

func (e *Encoder) PutU32(v uint32) {
	e.buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func (e *Encoder) PutI32(v int32) { e.PutU32(uint32(v)) }

func (e *Encoder) PutU64(v uint64) {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	e.buf.Write(b)
}

func (e *Encoder) PutI64(v int64) { e.PutU64(uint64(v)) }

// PutU128 writes a 128-bit unsigned integer as two little-endian 64-bit
// limbs, least-significant limb first.
func (e *Encoder) PutU128(lo, hi uint64) {
	e.PutU64(lo)
	e.PutU64(hi)
}

// PutU256 writes a 256-bit unsigned integer as four little-endian 64-bit
// limbs, least-significant limb first.
func (e *Encoder) PutU256(limbs [4]uint64) {
	for _, l := range limbs {
		e.PutU64(l)
	}
}

func (e *Encoder) PutF32(v float32) { e.PutU32(math.Float32bits(v)) }
func (e *Encoder) PutF64(v float64) { e.PutU64(math.Float64bits(v)) }

// PutBytes writes a u32 length prefix followed by the raw payload. It
// fails ErrOverflow if the payload cannot be length-prefixed in a u32.
func (e *Encoder) PutBytes(b []byte) error {
	if uint64(len(b)) > math.MaxUint32 {
		return wrapf(ErrOverflow, "bytes length %d", len(b))
	}
	e.PutU32(uint32(len(b)))
	e.buf.Write(b)
	return nil
}

// PutString writes a u32 byte-length prefix followed by the UTF-8 payload.
func (e *Encoder) PutString(s string) error {
	return e.PutBytes([]byte(s))
}

// PutOptionalFunc writes the optional tag, then — if present — invokes put
// to encode the wrapped value.
func (e *Encoder) PutOptionalFunc(present bool, put func(*Encoder) error) error {
	if !present {
		e.PutU8(0)
		return nil
	}
	e.PutU8(1)
	return put(e)
}

// PutSeqFunc writes a u32 count followed by n invocations of put, one per
// element. It fails ErrOverflow if n does not fit in a u32.
func (e *Encoder) PutSeqFunc(n int, put func(*Encoder, int) error) error {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return wrapf(ErrOverflow, "sequence length %d", n)
	}
	e.PutU32(uint32(n))
	for i := 0; i < n; i++ {
		if err := put(e, i); err != nil {
			return err
		}
	}
	return nil
}

// ValidUTF8 reports whether b is well-formed UTF-8; PutString relies on
// the caller's string type already guaranteeing this on encode, but
// Decoder.GetString must check the mirror condition explicitly.
func ValidUTF8(b []byte) bool { return utf8.Valid(b) }
