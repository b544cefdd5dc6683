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

package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(pk byte, rest ...byte) []byte {
	return append([]byte{pk}, rest...)
}

func TestFixedPrefixExtractorDegradesForShortRows(t *testing.T) {
	ex := FixedPrefixExtractor(8)
	short := []byte{1, 2, 3}
	assert.Equal(t, RowKey(short), ex(short))

	long := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, RowKey(long[:8]), ex(long))
}

func TestFixedRangeExtractorDegradesWhenOutOfRange(t *testing.T) {
	ex := FixedRangeExtractor(4, 4)
	short := []byte{1, 2, 3}
	assert.Equal(t, RowKey(short), ex(short))

	full := []byte{0, 0, 0, 0, 9, 9, 9, 9, 1}
	assert.Equal(t, RowKey([]byte{9, 9, 9, 9}), ex(full))
}

func TestTableCacheApplyDeltaCollapsesSamePKToUpdate(t *testing.T) {
	tc := newTableCache("user", FixedPrefixExtractor(1))

	events := tc.ApplyDelta(
		[][]byte{row(1, 0xAA)},
		[][]byte{row(1, 0xBB)},
	)

	require.Len(t, events, 1)
	assert.Equal(t, EventUpdate, events[0].Kind)
	assert.Equal(t, row(1, 0xAA), events[0].OldRow)
	assert.Equal(t, row(1, 0xBB), events[0].NewRow)

	assert.Equal(t, row(1, 0xBB), tc.Rows()[0])
	inserts, deletes, updates := tc.Stats()
	assert.Equal(t, uint64(0), inserts)
	assert.Equal(t, uint64(0), deletes)
	assert.Equal(t, uint64(1), updates)
}

func TestTableCacheApplyDeltaDifferentPKsAreSeparateEvents(t *testing.T) {
	tc := newTableCache("user", FixedPrefixExtractor(1))

	events := tc.ApplyDelta(
		[][]byte{row(1)},
		[][]byte{row(2)},
	)

	require.Len(t, events, 2)
	kinds := map[EventKind]int{}
	for _, ev := range events {
		kinds[ev.Kind]++
	}
	assert.Equal(t, 1, kinds[EventDelete])
	assert.Equal(t, 1, kinds[EventInsert])
	assert.Equal(t, 1, tc.Len())
}

func TestTableCacheApplyDeltaPureInsert(t *testing.T) {
	tc := newTableCache("user", FixedPrefixExtractor(1))
	events := tc.ApplyDelta(nil, [][]byte{row(1), row(2)})
	require.Len(t, events, 2)
	assert.Equal(t, 2, tc.Len())
}

func TestClientCacheObserverScopes(t *testing.T) {
	c := New()
	var tableKindHits, tableAnyHits, globalHits int

	c.OnTableKind("user", EventInsert, func(RowEvent) { tableKindHits++ })
	c.OnTable("user", func(RowEvent) { tableAnyHits++ })
	c.OnAny(func(RowEvent) { globalHits++ })

	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1)})
	assert.Equal(t, 1, tableKindHits)
	assert.Equal(t, 1, tableAnyHits)
	assert.Equal(t, 1, globalHits)

	c.ApplyTable("account", FixedPrefixExtractor(1), nil, [][]byte{row(9)})
	assert.Equal(t, 1, tableKindHits) // unaffected: different table
	assert.Equal(t, 1, tableAnyHits)
	assert.Equal(t, 2, globalHits)
}

func TestClientCacheOnInsertAndDeleteSplitsUpdate(t *testing.T) {
	c := New()
	var inserted, deleted []RowEvent
	c.OnInsertAndDelete("user", func(e RowEvent) { inserted = append(inserted, e) }, func(e RowEvent) { deleted = append(deleted, e) })

	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1, 1)})
	require.Len(t, inserted, 1)
	require.Len(t, deleted, 0)

	c.ApplyTable("user", FixedPrefixExtractor(1), [][]byte{row(1, 1)}, [][]byte{row(1, 2)})
	require.Len(t, inserted, 2)
	require.Len(t, deleted, 1)
	assert.Equal(t, row(1, 1), deleted[0].OldRow)
	assert.Equal(t, row(1, 2), inserted[1].NewRow)
}

func TestClientCacheUnsubscribe(t *testing.T) {
	c := New()
	hits := 0
	h := c.OnAny(func(RowEvent) { hits++ })
	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1)})
	assert.Equal(t, 1, hits)

	c.Unsubscribe(h)
	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(2)})
	assert.Equal(t, 1, hits)
}

func TestClientCacheClear(t *testing.T) {
	c := New()
	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1), row(2)})
	tc, ok := c.Table("user")
	require.True(t, ok)
	assert.Equal(t, 2, tc.Len())

	c.Clear()
	assert.Equal(t, 0, tc.Len())
	_, ok = c.Table("user")
	assert.True(t, ok, "Clear keeps the table, only empties its rows")
}

func TestClientCacheReset(t *testing.T) {
	c := New()
	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1), row(2)})
	_, ok := c.Table("user")
	require.True(t, ok)

	c.Reset()
	_, ok = c.Table("user")
	assert.False(t, ok, "Reset removes the table entirely")
}

func TestClientCacheTablesLists(t *testing.T) {
	c := New()
	c.ApplyTable("user", FixedPrefixExtractor(1), nil, [][]byte{row(1)})
	c.ApplyTable("account", FixedPrefixExtractor(1), nil, [][]byte{row(1)})
	assert.ElementsMatch(t, []string{"user", "account"}, c.Tables())
}
