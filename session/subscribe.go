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

import (
	"context"

	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/wire"
)

// Subscription is a handle to one active set of subscribed queries. It
// is only ever produced by a successful Subscribe call and consumed by
// Unsubscribe.
type Subscription struct {
	queryID uint32
	kind    subscriptionKind
}

// SubscribeAll subscribes to every query in queries as one legacy,
// whole-result-set subscription. The returned Subscription's query id
// is synthetic (there is no server-assigned id for this kind); use it
// only to remember you've subscribed, not to Unsubscribe — legacy
// subscriptions are torn down by disconnecting.
func (c *Connection) SubscribeAll(ctx context.Context, queries []string) (Subscription, error) {
	tr, err := c.currentTransport()
	if err != nil {
		return Subscription{}, err
	}

	reqID := c.reqIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.Subscribe{Queries: queries, RequestID: reqID})
	if err != nil {
		return Subscription{}, err
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return Subscription{}, err
	}

	if _, err := awaitResult(ctx, ch, func() { c.pending.forget(reqID) }); err != nil {
		return Subscription{}, err
	}

	queryID := c.queryIDs.nextID()
	c.subs.add(queryID, subKindLegacyAll, queries)
	return Subscription{queryID: queryID, kind: subKindLegacyAll}, nil
}

// SubscribeSingle subscribes to one query and waits for the matching
// SubscribeApplied.
func (c *Connection) SubscribeSingle(ctx context.Context, query string) (Subscription, error) {
	tr, err := c.currentTransport()
	if err != nil {
		return Subscription{}, err
	}

	reqID := c.reqIDs.nextID()
	queryID := c.queryIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.SubscribeSingle{Query: query, RequestID: reqID, QueryID: queryID})
	if err != nil {
		return Subscription{}, err
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return Subscription{}, err
	}

	if _, err := awaitResult(ctx, ch, func() { c.pending.forget(reqID) }); err != nil {
		return Subscription{}, err
	}

	c.subs.add(queryID, subKindSingle, []string{query})
	return Subscription{queryID: queryID, kind: subKindSingle}, nil
}

// SubscribeMulti subscribes to every query in queries as one group and
// waits for the matching SubscribeMultiApplied.
func (c *Connection) SubscribeMulti(ctx context.Context, queries []string) (Subscription, error) {
	tr, err := c.currentTransport()
	if err != nil {
		return Subscription{}, err
	}

	reqID := c.reqIDs.nextID()
	queryID := c.queryIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.SubscribeMulti{Queries: queries, RequestID: reqID, QueryID: queryID})
	if err != nil {
		return Subscription{}, err
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return Subscription{}, err
	}

	if _, err := awaitResult(ctx, ch, func() { c.pending.forget(reqID) }); err != nil {
		return Subscription{}, err
	}

	c.subs.add(queryID, subKindMulti, queries)
	return Subscription{queryID: queryID, kind: subKindMulti}, nil
}

// Unsubscribe cancels a Subscription previously returned by
// SubscribeSingle or SubscribeMulti.
func (c *Connection) Unsubscribe(ctx context.Context, sub Subscription) error {
	tr, err := c.currentTransport()
	if err != nil {
		return err
	}

	reqID := c.reqIDs.nextID()
	var msg wire.ClientMessage
	switch sub.kind {
	case subKindSingle:
		msg = wire.Unsubscribe{RequestID: reqID, QueryID: sub.queryID}
	case subKindMulti:
		msg = wire.UnsubscribeMulti{RequestID: reqID, QueryID: sub.queryID}
	default:
		return errors.New("session: legacy SubscribeAll subscriptions cannot be individually unsubscribed")
	}

	b, err := wire.EncodeClientMessage(msg)
	if err != nil {
		return err
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return err
	}

	if _, err := awaitResult(ctx, ch, func() { c.pending.forget(reqID) }); err != nil {
		return err
	}

	c.subs.remove(sub.queryID)
	return nil
}
