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
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/relaydb/relay-client-go/internal/metrics"
	"github.com/relaydb/relay-client-go/internal/registry"
)

// numShards partitions the table registry across independent mutexes,
// the same striping technique internal/labels.Labels.Hash uses xxhash
// for before reducing a label set to a single bucket key.
const numShards = 16

type shard struct {
	mu     sync.RWMutex
	tables map[string]*TableCache
}

// ClientCache is the full per-connection cache: every subscribed
// table's TableCache, plus the observer registry row events are
// dispatched through.
type ClientCache struct {
	shards    [numShards]*shard
	observers *registry.Registry[RowEvent]
}

// New builds an empty ClientCache.
func New() *ClientCache {
	c := &ClientCache{observers: registry.New[RowEvent]()}
	for i := range c.shards {
		c.shards[i] = &shard{tables: make(map[string]*TableCache)}
	}
	return c
}

func (c *ClientCache) shardFor(table string) *shard {
	h := xxhash.Sum64String(table)
	return c.shards[h%numShards]
}

// Table returns the named table's cache, false if nothing has ever
// subscribed to it.
func (c *ClientCache) Table(name string) (*TableCache, bool) {
	s := c.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	return t, ok
}

// TableOrCreate returns the named table's cache, creating it with
// extractor if this is the first time the table has been seen.
func (c *ClientCache) TableOrCreate(name string, extractor PrimaryKeyExtractor) *TableCache {
	s := c.shardFor(name)

	s.mu.RLock()
	t, ok := s.tables[name]
	s.mu.RUnlock()
	if ok {
		return t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok = s.tables[name]; ok {
		return t
	}
	t = newTableCache(name, extractor)
	s.tables[name] = t
	return t
}

// Tables returns the names of every table currently tracked.
func (c *ClientCache) Tables() []string {
	var names []string
	for _, s := range c.shards {
		s.mu.RLock()
		for name := range s.tables {
			names = append(names, name)
		}
		s.mu.RUnlock()
	}
	return names
}

// ApplyTable merges deletes/inserts for one table and publishes the
// resulting RowEvents to every matching observer, in the order
// ApplyDelta produced them.
func (c *ClientCache) ApplyTable(name string, extractor PrimaryKeyExtractor, deletes, inserts [][]byte) []RowEvent {
	t := c.TableOrCreate(name, extractor)
	events := t.ApplyDelta(deletes, inserts)
	for _, ev := range events {
		c.observers.Publish(name, uint8(ev.Kind), ev)
	}
	metrics.RowsCached.Set(float64(c.totalRows()))
	return events
}

func (c *ClientCache) totalRows() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		for _, t := range s.tables {
			total += t.Len()
		}
		s.mu.RUnlock()
	}
	return total
}

// OnTableKind subscribes cb to events of exactly kind on table.
func (c *ClientCache) OnTableKind(table string, kind EventKind, cb func(RowEvent)) string {
	return c.observers.Subscribe(registry.Scope{Table: table, Kind: uint8(kind)}, cb)
}

// OnTable subscribes cb to every event kind on table.
func (c *ClientCache) OnTable(table string, cb func(RowEvent)) string {
	return c.observers.Subscribe(registry.Scope{Table: table, AnyKind: true}, cb)
}

// OnAny subscribes cb to every event on every table.
func (c *ClientCache) OnAny(cb func(RowEvent)) string {
	return c.observers.Subscribe(registry.Scope{AnyKind: true}, cb)
}

// OnInsertAndDelete is the backward-compatible pairing some callers
// opt into: it registers independent insert and delete observers and
// synthesizes both from an EventUpdate, so code written before update
// coalescing existed keeps working unmodified. New code should prefer
// OnTableKind(table, EventUpdate, ...) directly.
func (c *ClientCache) OnInsertAndDelete(table string, onInsert, onDelete func(RowEvent)) string {
	return c.observers.Subscribe(registry.Scope{Table: table, AnyKind: true}, func(ev RowEvent) {
		switch ev.Kind {
		case EventInsert:
			onInsert(ev)
		case EventDelete:
			onDelete(ev)
		case EventUpdate:
			onDelete(RowEvent{Table: ev.Table, Kind: EventDelete, OldRow: ev.OldRow})
			onInsert(RowEvent{Table: ev.Table, Kind: EventInsert, NewRow: ev.NewRow})
		}
	})
}

// Unsubscribe removes a previously returned observer handle.
func (c *ClientCache) Unsubscribe(handle string) {
	c.observers.Unsubscribe(handle)
}

// Clear empties every table's rows but keeps the tables themselves (and
// their registered extractors) in place.
func (c *ClientCache) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		for _, t := range s.tables {
			t.Clear()
		}
		s.mu.Unlock()
	}
	metrics.RowsCached.Set(0)
}

// Reset removes every table tracked by the cache outright, used when the
// session drops all subscriptions (an absent SubscriptionError.RequestID)
// or is about to replay subscriptions after a reconnect from scratch.
// Unlike Clear, a table removed by Reset no longer exists until something
// resubscribes to it and TableOrCreate rebuilds it.
func (c *ClientCache) Reset() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.tables = make(map[string]*TableCache)
		s.mu.Unlock()
	}
	metrics.RowsCached.Set(0)
}
