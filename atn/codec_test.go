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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitExactLayout(t *testing.T) {
	tests := []struct {
		name string
		put  func(e *Encoder)
		want []byte
	}{
		{"true", func(e *Encoder) { e.PutBool(true) }, []byte{0x01}},
		{"false", func(e *Encoder) { e.PutBool(false) }, []byte{0x00}},
		{"u16", func(e *Encoder) { e.PutU16(0x1234) }, []byte{0x34, 0x12}},
		{"empty string", func(e *Encoder) { require.NoError(t, e.PutString("")) }, []byte{0, 0, 0, 0}},
		{"Some(42i32)", func(e *Encoder) {
			require.NoError(t, e.PutOptionalFunc(true, func(e *Encoder) error { e.PutI32(42); return nil }))
		}, []byte{0x01, 0x2A, 0, 0, 0}},
		{"None", func(e *Encoder) {
			require.NoError(t, e.PutOptionalFunc(false, nil))
		}, []byte{0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder()
			defer e.Release()
			tt.put(e)
			assert.Equal(t, tt.want, e.Bytes())
		})
	}
}

func TestRoundTripPrimitives(t *testing.T) {
	e := NewEncoder()
	defer e.Release()

	e.PutBool(true)
	e.PutU8(0xAB)
	e.PutI8(-5)
	e.PutU16(0xBEEF)
	e.PutI16(-1000)
	e.PutU32(0xDEADBEEF)
	e.PutI32(-123456)
	e.PutU64(0x0123456789ABCDEF)
	e.PutI64(-9876543210)
	e.PutF32(3.14)
	e.PutF64(2.718281828)
	require.NoError(t, e.PutString("hello, ATN"))
	require.NoError(t, e.PutBytes([]byte{1, 2, 3, 4, 5}))

	d := NewDecoder(e.Bytes())

	b, err := d.GetBool()
	require.NoError(t, err)
	assert.True(t, b)

	u8, err := d.GetU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u8)

	i8, err := d.GetI8()
	require.NoError(t, err)
	assert.Equal(t, int8(-5), i8)

	u16, err := d.GetU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)

	i16, err := d.GetI16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1000), i16)

	u32, err := d.GetU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	i32, err := d.GetI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123456), i32)

	u64, err := d.GetU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), u64)

	i64, err := d.GetI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-9876543210), i64)

	f32, err := d.GetF32()
	require.NoError(t, err)
	assert.InDelta(t, float32(3.14), f32, 0.0001)

	f64, err := d.GetF64()
	require.NoError(t, err)
	assert.InDelta(t, 2.718281828, f64, 0.0000001)

	s, err := d.GetString()
	require.NoError(t, err)
	assert.Equal(t, "hello, ATN", s)

	bs, err := d.GetBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, bs)

	assert.True(t, d.Done())
}

func TestRoundTripU128U256(t *testing.T) {
	e := NewEncoder()
	defer e.Release()
	e.PutU128(0x1122334455667788, 0x99AABBCCDDEEFF00)
	e.PutU256([4]uint64{1, 2, 3, 4})

	d := NewDecoder(e.Bytes())
	lo, hi, err := d.GetU128()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), lo)
	assert.Equal(t, uint64(0x99AABBCCDDEEFF00), hi)

	limbs, err := d.GetU256()
	require.NoError(t, err)
	assert.Equal(t, [4]uint64{1, 2, 3, 4}, limbs)
}

func TestRoundTripOptionalAndSeq(t *testing.T) {
	e := NewEncoder()
	defer e.Release()

	require.NoError(t, e.PutOptionalFunc(false, nil))
	require.NoError(t, e.PutOptionalFunc(true, func(e *Encoder) error {
		return e.PutString("present")
	}))

	items := []string{"a", "bb", "ccc"}
	require.NoError(t, e.PutSeqFunc(len(items), func(e *Encoder, i int) error {
		return e.PutString(items[i])
	}))

	d := NewDecoder(e.Bytes())

	present, err := d.GetOptionalFunc(func(d *Decoder) error { t.Fatal("should not decode absent"); return nil })
	require.NoError(t, err)
	assert.False(t, present)

	var got string
	present, err = d.GetOptionalFunc(func(d *Decoder) error {
		var gerr error
		got, gerr = d.GetString()
		return gerr
	})
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "present", got)

	var decoded []string
	n, err := d.GetSeqFunc(func(d *Decoder, i int) error {
		s, err := d.GetString()
		decoded = append(decoded, s)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, items, decoded)
}

func TestIdentityEndianness(t *testing.T) {
	hexStr := strings.Repeat("ab", 32)
	id, err := IdentityFromHex(hexStr)
	require.NoError(t, err)
	assert.Equal(t, hexStr, id.ToHexBE())

	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i)
	}
	id2, err := IdentityFromBytesLE(raw[:])
	require.NoError(t, err)
	assert.Equal(t, raw[:], id2.ToBytesLE())
}

func TestIdentityWireRoundTrip(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(255 - i)
	}
	id, err := IdentityFromBytesLE(raw[:])
	require.NoError(t, err)

	e := NewEncoder()
	defer e.Release()
	e.PutIdentity(id)

	d := NewDecoder(e.Bytes())
	got, err := d.GetIdentity()
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestDecoderRobustness(t *testing.T) {
	t.Run("truncated u32", func(t *testing.T) {
		d := NewDecoder([]byte{0x01, 0x02})
		_, err := d.GetU32()
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})

	t.Run("invalid bool", func(t *testing.T) {
		d := NewDecoder([]byte{0x02})
		_, err := d.GetBool()
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("invalid optional tag", func(t *testing.T) {
		d := NewDecoder([]byte{0x05})
		_, err := d.GetOptionalFunc(func(*Decoder) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("unknown enum tag", func(t *testing.T) {
		d := NewDecoder([]byte{0x09})
		_, err := d.GetEnumTag(0, 1, 2)
		assert.ErrorIs(t, err, ErrInvalidEnumTag)
	})

	t.Run("invalid utf8 string", func(t *testing.T) {
		e := NewEncoder()
		defer e.Release()
		require.NoError(t, e.PutBytes([]byte{0xff, 0xfe, 0xfd}))
		d := NewDecoder(e.Bytes())
		_, err := d.GetString()
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("empty buffer read", func(t *testing.T) {
		d := NewDecoder(nil)
		_, err := d.GetU8()
		assert.ErrorIs(t, err, ErrUnexpectedEOF)
	})
}

func TestOverflowGuards(t *testing.T) {
	e := NewEncoder()
	defer e.Release()
	err := e.PutSeqFunc(-1, func(*Encoder, int) error { return nil })
	assert.ErrorIs(t, err, ErrOverflow)
}
