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

import "math"

// Decoder consumes primitive and composite ATN values from a byte slice,
// advancing a cursor. Unlike a streaming zero-copy reader that happily
// returns whatever bytes happen to be available, Decoder's contract is
// strict: every fixed-width read either advances the cursor by exactly
// the bytes it needs or fails ErrUnexpectedEOF and leaves the cursor
// untouched. Composite reads (length-prefixed bytes and strings, U128,
// U256, optionals, sequences) are built from those reads, so when one of
// them fails the parts it already read stay consumed.
type Decoder struct {
	b   []byte
	pos int
}

// NewDecoder wraps b for decoding. b is not copied; the caller must not
// mutate it while the Decoder is in use.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

// Remaining returns the number of undecoded bytes left in the buffer.
func (d *Decoder) Remaining() int { return len(d.b) - d.pos }

// Done reports whether the cursor has reached the end of the buffer.
func (d *Decoder) Done() bool { return d.pos >= len(d.b) }

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.b) {
		return nil, wrapf(ErrUnexpectedEOF, "need %d bytes, have %d", n, d.Remaining())
	}
	b := d.b[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) GetBool() (bool, error) {
	b, err := d.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, wrapf(ErrInvalidData, "bool byte %#x", b[0])
	}
}

func (d *Decoder) GetU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) GetI8() (int8, error) {
	v, err := d.GetU8()
	return int8(v), err
}

func (d *Decoder) GetU16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (d *Decoder) GetI16() (int16, error) {
	v, err := d.GetU16()
	return int16(v), err
}

func (d *Decoder) GetU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (d *Decoder) GetI32() (int32, error) {
	v, err := d.GetU32()
	return int32(v), err
}

func (d *Decoder) GetU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v, nil
}

func (d *Decoder) GetI64() (int64, error) {
	v, err := d.GetU64()
	return int64(v), err
}

// GetU128 returns the two little-endian 64-bit limbs (lo, hi).
func (d *Decoder) GetU128() (lo, hi uint64, err error) {
	if lo, err = d.GetU64(); err != nil {
		return 0, 0, err
	}
	if hi, err = d.GetU64(); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// GetU256 returns the four little-endian 64-bit limbs, least-significant
// first.
func (d *Decoder) GetU256() ([4]uint64, error) {
	var limbs [4]uint64
	for i := range limbs {
		v, err := d.GetU64()
		if err != nil {
			return [4]uint64{}, err
		}
		limbs[i] = v
	}
	return limbs, nil
}

func (d *Decoder) GetF32() (float32, error) {
	v, err := d.GetU32()
	return math.Float32frombits(v), err
}

func (d *Decoder) GetF64() (float64, error) {
	v, err := d.GetU64()
	return math.Float64frombits(v), err
}

// GetBytes reads a u32 length prefix followed by that many raw bytes. The
// returned slice aliases the Decoder's backing array and must be copied
// by the caller if it outlives the decode pass.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetU32()
	if err != nil {
		return nil, err
	}
	return d.take(int(n))
}

// GetString reads a u32 byte-length prefix followed by the UTF-8 payload.
func (d *Decoder) GetString() (string, error) {
	b, err := d.GetBytes()
	if err != nil {
		return "", err
	}
	if !ValidUTF8(b) {
		return "", wrapf(ErrInvalidEncoding, "%d byte payload", len(b))
	}
	return string(b), nil
}

// GetOptionalFunc reads the optional tag and, if present, invokes get to
// decode the wrapped value.
func (d *Decoder) GetOptionalFunc(get func(*Decoder) error) (present bool, err error) {
	tag, err := d.GetU8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		if err := get(d); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, wrapf(ErrInvalidData, "optional tag %#x", tag)
	}
}

// GetSeqFunc reads a u32 count and invokes get once per element, passing
// the zero-based index.
func (d *Decoder) GetSeqFunc(get func(*Decoder, int) error) (int, error) {
	n, err := d.GetU32()
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(n); i++ {
		if err := get(d, i); err != nil {
			return i, err
		}
	}
	return int(n), nil
}

// GetEnumTag reads the u8 variant tag of a sum type and validates it
// against the set of tags the caller considers valid. Unknown tags always
// fail ErrInvalidEnumTag — there is no silent fallback variant.
func (d *Decoder) GetEnumTag(valid ...uint8) (uint8, error) {
	tag, err := d.GetU8()
	if err != nil {
		return 0, err
	}
	for _, v := range valid {
		if v == tag {
			return tag, nil
		}
	}
	return 0, wrapf(ErrInvalidEnumTag, "tag %#x", tag)
}
