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

package session

import "sync"

// subscriptionKind distinguishes the three ways a query set reaches
// the server, since each has its own completion message pairing
// (InitialSubscription <-> Subscribe, SubscribeApplied <-> SubscribeSingle,
// SubscribeMultiApplied <-> SubscribeMulti) and its own replay shape.
type subscriptionKind int

const (
	subKindLegacyAll subscriptionKind = iota
	subKindSingle
	subKindMulti
)

type activeSubscription struct {
	queryID uint32
	kind    subscriptionKind
	queries []string
}

// subscriptionSet tracks every subscription the caller has asked for,
// so a reconnect can replay the union of them as a single batch
// Subscribe before any reducer call is accepted again.
type subscriptionSet struct {
	mu   sync.Mutex
	byID map[uint32]*activeSubscription
}

func newSubscriptionSet() *subscriptionSet {
	return &subscriptionSet{byID: make(map[uint32]*activeSubscription)}
}

func (s *subscriptionSet) add(queryID uint32, kind subscriptionKind, queries []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[queryID] = &activeSubscription{queryID: queryID, kind: kind, queries: queries}
}

func (s *subscriptionSet) remove(queryID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, queryID)
}

func (s *subscriptionSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[uint32]*activeSubscription)
}

// allQueries returns the union of every query string currently
// subscribed, across every kind, for replay as one batch Subscribe.
func (s *subscriptionSet) allQueries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := make(map[string]bool)
	for _, sub := range s.byID {
		for _, q := range sub.queries {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	return out
}
