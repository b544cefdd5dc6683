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

// Package cache holds the client-side, per-table row cache that keeps
// a coherent view of every subscribed table between DatabaseUpdate
// frames, and dispatches row-change events to registered observers.
package cache

// RowKey identifies a row within one table. It is always derived from
// the raw ATN-encoded row bytes by a PrimaryKeyExtractor, never
// interpreted as a logical value, so two structurally different rows
// that hash to the same bytes are indistinguishable by design — exactly
// like a real primary key.
type RowKey string

// PrimaryKeyExtractor derives a RowKey from a row's raw encoded bytes.
type PrimaryKeyExtractor func(row []byte) RowKey

// IdentityExtractor uses the entire encoded row as its own key: two
// rows compare equal only if every byte matches. This is the correct
// choice for tables with no declared primary key, where "update" can
// only ever mean "this exact row vanished, that exact row appeared".
func IdentityExtractor() PrimaryKeyExtractor {
	return func(row []byte) RowKey {
		return RowKey(row)
	}
}

// FixedPrefixExtractor keys a row by its first n bytes, which is
// sufficient when the table's primary key is encoded as a fixed-width
// column placed first in the row (the common case for u32/u64/Identity
// primary keys under ATN's position-based layout). Rows shorter than n
// degrade to the identity extractor rather than panicking or silently
// truncating into a collision-prone key.
func FixedPrefixExtractor(n int) PrimaryKeyExtractor {
	identity := IdentityExtractor()
	return func(row []byte) RowKey {
		if n <= 0 || len(row) < n {
			return identity(row)
		}
		return RowKey(row[:n])
	}
}

// FixedRangeExtractor keys a row by the n bytes starting at offset,
// for primary keys that aren't the first column. Rows too short to
// contain the full range degrade to the identity extractor.
func FixedRangeExtractor(offset, n int) PrimaryKeyExtractor {
	identity := IdentityExtractor()
	return func(row []byte) RowKey {
		if offset < 0 || n <= 0 || offset+n > len(row) {
			return identity(row)
		}
		return RowKey(row[offset : offset+n])
	}
}

// FixedPrefix4/8/16/32 are convenience constructors for the u32/u64/
// u128-or-Identity-half/u256-or-Identity primary key widths ATN
// produces most often.
func FixedPrefix4() PrimaryKeyExtractor  { return FixedPrefixExtractor(4) }
func FixedPrefix8() PrimaryKeyExtractor  { return FixedPrefixExtractor(8) }
func FixedPrefix16() PrimaryKeyExtractor { return FixedPrefixExtractor(16) }
func FixedPrefix32() PrimaryKeyExtractor { return FixedPrefixExtractor(32) }
