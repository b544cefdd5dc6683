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

package wire

import (
	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/atn"
)

// ErrUnknownCompressableTag is returned by callers decompressing a
// CompressableQueryUpdate whose Tag isn't one of the three known
// values.
var ErrUnknownCompressableTag = errors.New("wire: unknown CompressableQueryUpdate tag")

// RowSizeHint tags (§6 bit-exact framing rules).
const (
	RowSizeHintFixedSize byte = iota
	RowSizeHintOffsets
)

// RowSizeHint describes how a BsatnRowList's payload is segmented into
// individual rows: either every row has the same FixedSize, or the
// boundaries are given explicitly as RowOffsets.
type RowSizeHint struct {
	Tag        byte
	FixedSize  uint16
	RowOffsets []uint64
}

func (h RowSizeHint) Encode(e *atn.Encoder) error {
	e.PutU8(h.Tag)
	switch h.Tag {
	case RowSizeHintFixedSize:
		e.PutU16(h.FixedSize)
		return nil
	case RowSizeHintOffsets:
		return e.PutSeqFunc(len(h.RowOffsets), func(e *atn.Encoder, i int) error {
			e.PutU64(h.RowOffsets[i])
			return nil
		})
	default:
		return newError("encode RowSizeHint: unknown tag %d", h.Tag)
	}
}

func decodeRowSizeHint(d *atn.Decoder) (RowSizeHint, error) {
	tag, err := d.GetEnumTag(RowSizeHintFixedSize, RowSizeHintOffsets)
	if err != nil {
		return RowSizeHint{}, newError("decode RowSizeHint: %v", err)
	}
	h := RowSizeHint{Tag: tag}
	switch tag {
	case RowSizeHintFixedSize:
		h.FixedSize, err = d.GetU16()
		return h, err
	case RowSizeHintOffsets:
		_, err = d.GetSeqFunc(func(d *atn.Decoder, i int) error {
			v, err := d.GetU64()
			h.RowOffsets = append(h.RowOffsets, v)
			return err
		})
		return h, err
	default:
		return h, newError("decode RowSizeHint: unreachable tag %d", tag)
	}
}

// BsatnRowList is a size hint plus the concatenated ATN-encoded rows:
// [RowSizeHint][u32 bytes-length][bytes].
type BsatnRowList struct {
	Hint RowSizeHint
	Rows []byte
}

func (l BsatnRowList) Encode(e *atn.Encoder) error {
	if err := l.Hint.Encode(e); err != nil {
		return err
	}
	return e.PutBytes(l.Rows)
}

func decodeBsatnRowList(d *atn.Decoder) (BsatnRowList, error) {
	hint, err := decodeRowSizeHint(d)
	if err != nil {
		return BsatnRowList{}, err
	}
	rows, err := d.GetBytes()
	if err != nil {
		return BsatnRowList{}, newError("decode BsatnRowList rows: %v", err)
	}
	return BsatnRowList{Hint: hint, Rows: rows}, nil
}

// Split splits the row list into individual ATN-encoded row byte strings
// using the size hint. It is a lazy-sequence materialization per §3's
// Row delta definition.
func (l BsatnRowList) Split() ([][]byte, error) {
	switch l.Hint.Tag {
	case RowSizeHintFixedSize:
		n := int(l.Hint.FixedSize)
		if n == 0 {
			if len(l.Rows) == 0 {
				return nil, nil
			}
			return nil, newError("split BsatnRowList: zero fixed size with %d bytes remaining", len(l.Rows))
		}
		if len(l.Rows) == 0 {
			return nil, nil
		}
		if len(l.Rows)%n != 0 {
			return nil, newError("split BsatnRowList: %d bytes not a multiple of fixed size %d", len(l.Rows), n)
		}
		out := make([][]byte, 0, len(l.Rows)/n)
		for off := 0; off < len(l.Rows); off += n {
			out = append(out, l.Rows[off:off+n])
		}
		return out, nil
	case RowSizeHintOffsets:
		offsets := l.Hint.RowOffsets
		out := make([][]byte, 0, len(offsets))
		for i, off := range offsets {
			end := uint64(len(l.Rows))
			if i+1 < len(offsets) {
				end = offsets[i+1]
			}
			if off > uint64(len(l.Rows)) || end > uint64(len(l.Rows)) || off > end {
				return nil, newError("split BsatnRowList: offset %d/%d out of range for %d bytes", off, end, len(l.Rows))
			}
			out = append(out, l.Rows[off:end])
		}
		return out, nil
	default:
		return nil, newError("split BsatnRowList: unknown hint tag %d", l.Hint.Tag)
	}
}

// QueryUpdate is one row delta for a single query: rows removed and rows
// added, each as a BsatnRowList.
type QueryUpdate struct {
	Deletes BsatnRowList
	Inserts BsatnRowList
}

func (u QueryUpdate) Encode(e *atn.Encoder) error {
	if err := u.Deletes.Encode(e); err != nil {
		return err
	}
	return u.Inserts.Encode(e)
}

// DecodeQueryUpdate parses a standalone QueryUpdate, used by callers
// that have already decompressed a CompressableQueryUpdate's payload
// (see wire/compress) and need to decode the resulting bytes.
func DecodeQueryUpdate(b []byte) (QueryUpdate, error) {
	return decodeQueryUpdate(atn.NewDecoder(b))
}

func decodeQueryUpdate(d *atn.Decoder) (QueryUpdate, error) {
	deletes, err := decodeBsatnRowList(d)
	if err != nil {
		return QueryUpdate{}, err
	}
	inserts, err := decodeBsatnRowList(d)
	if err != nil {
		return QueryUpdate{}, err
	}
	return QueryUpdate{Deletes: deletes, Inserts: inserts}, nil
}

// CompressableQueryUpdate tags (§4.C).
const (
	QueryUpdateUncompressed byte = iota
	QueryUpdateBrotli
	QueryUpdateGzip
)

// CompressableQueryUpdate wraps a QueryUpdate that may be carried
// compressed. Decoding the compressed variants yields raw bytes; the
// caller must decompress and then decode those bytes as a QueryUpdate
// (see wire/compress).
type CompressableQueryUpdate struct {
	Tag         byte
	Uncompressed QueryUpdate
	Compressed  []byte // valid when Tag is Brotli or Gzip
}

func (u CompressableQueryUpdate) Encode(e *atn.Encoder) error {
	e.PutU8(u.Tag)
	switch u.Tag {
	case QueryUpdateUncompressed:
		return u.Uncompressed.Encode(e)
	case QueryUpdateBrotli, QueryUpdateGzip:
		return e.PutBytes(u.Compressed)
	default:
		return newError("encode CompressableQueryUpdate: unknown tag %d", u.Tag)
	}
}

func decodeCompressableQueryUpdate(d *atn.Decoder) (CompressableQueryUpdate, error) {
	tag, err := d.GetEnumTag(QueryUpdateUncompressed, QueryUpdateBrotli, QueryUpdateGzip)
	if err != nil {
		return CompressableQueryUpdate{}, newError("decode CompressableQueryUpdate: %v", err)
	}
	u := CompressableQueryUpdate{Tag: tag}
	switch tag {
	case QueryUpdateUncompressed:
		u.Uncompressed, err = decodeQueryUpdate(d)
		return u, err
	case QueryUpdateBrotli, QueryUpdateGzip:
		u.Compressed, err = d.GetBytes()
		return u, err
	default:
		return u, newError("decode CompressableQueryUpdate: unreachable tag %d", tag)
	}
}

// TableUpdate carries every row delta the server produced for one table
// within a single DatabaseUpdate.
type TableUpdate struct {
	TableID   uint32
	TableName string
	NumRows   uint64
	Updates   []CompressableQueryUpdate
}

func (u TableUpdate) Encode(e *atn.Encoder) error {
	e.PutU32(u.TableID)
	if err := e.PutString(u.TableName); err != nil {
		return err
	}
	e.PutU64(u.NumRows)
	return e.PutSeqFunc(len(u.Updates), func(e *atn.Encoder, i int) error {
		return u.Updates[i].Encode(e)
	})
}

func decodeTableUpdate(d *atn.Decoder) (TableUpdate, error) {
	var u TableUpdate
	var err error
	if u.TableID, err = d.GetU32(); err != nil {
		return u, err
	}
	if u.TableName, err = d.GetString(); err != nil {
		return u, err
	}
	if u.NumRows, err = d.GetU64(); err != nil {
		return u, err
	}
	_, err = d.GetSeqFunc(func(d *atn.Decoder, i int) error {
		cu, err := decodeCompressableQueryUpdate(d)
		u.Updates = append(u.Updates, cu)
		return err
	})
	return u, err
}

// DatabaseUpdate is an ordered sequence of TableUpdates, applied
// atomically from the cache's perspective.
type DatabaseUpdate struct {
	Tables []TableUpdate
}

func (u DatabaseUpdate) Encode(e *atn.Encoder) error {
	return e.PutSeqFunc(len(u.Tables), func(e *atn.Encoder, i int) error {
		return u.Tables[i].Encode(e)
	})
}

func decodeDatabaseUpdate(d *atn.Decoder) (DatabaseUpdate, error) {
	var u DatabaseUpdate
	_, err := d.GetSeqFunc(func(d *atn.Decoder, i int) error {
		t, err := decodeTableUpdate(d)
		u.Tables = append(u.Tables, t)
		return err
	})
	return u, err
}
