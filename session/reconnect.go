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
	"time"

	"github.com/relaydb/relay-client-go/internal/metrics"
	"github.com/relaydb/relay-client-go/logger"
	"github.com/relaydb/relay-client-go/wire"
)

// handleReadError runs on the read-loop goroutine the moment the
// socket dies. A deliberate Disconnect already closed closeCh, so that
// case exits quietly; anything else starts the reconnect loop on a
// fresh goroutine, since handleReadError itself must return promptly
// for readLoop's wg.Done to fire.
func (c *Connection) handleReadError(err error) {
	select {
	case <-c.closeCh:
		return
	default:
	}

	logDisconnect(err)
	metrics.ConnectionState.Set(0)
	c.tr.Store(nil)
	c.pending.drain(ErrConnectionClosed)
	c.oneOff.drain(ErrConnectionClosed)
	if c.cfg.MaxReconnectAttempts > 0 {
		c.state.Store(int32(StateReconnecting))
	} else {
		c.state.Store(int32(StateDisconnected))
	}

	c.wg.Add(1)
	go c.reconnectLoop()
}

// reconnectLoop retries the connection with exponential backoff until
// it succeeds, MaxReconnectAttempts is exhausted, or the connection is
// explicitly closed. On success it replays every active subscription
// as a single batch Subscribe before the new transport is published,
// so no reducer call can race ahead of the replay.
func (c *Connection) reconnectLoop() {
	defer c.wg.Done()

	for attempt := 0; attempt < c.cfg.MaxReconnectAttempts; attempt++ {
		delay := delayForAttempt(c.cfg.ReconnectDelay, c.cfg.MaxReconnectDelay, attempt)
		select {
		case <-time.After(delay):
		case <-c.closeCh:
			return
		}

		metrics.ReconnectAttempts.Inc()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		tr, err := dial(ctx, c.cfg)
		cancel()
		if err != nil {
			logger.Warnf("session: reconnect attempt %d failed: %v", attempt+1, err)
			continue
		}

		c.wg.Add(2)
		go c.readLoop(tr)
		go c.pingLoop(tr)

		waitCtx, waitCancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		identityOK := c.waitIdentity(waitCtx)
		waitCancel()
		if !identityOK {
			_ = tr.close()
			continue
		}

		c.cache.Reset()

		if err := c.replaySubscriptions(tr); err != nil {
			logger.Warnf("session: subscription replay failed after reconnect: %v", err)
			_ = tr.close()
			continue
		}

		c.tr.Store(tr)
		c.state.Store(int32(StateConnected))
		metrics.ConnectionState.Set(1)
		c.fireConnectCallbacks()
		return
	}

	logger.Errorf("session: giving up after %d reconnect attempts", c.cfg.MaxReconnectAttempts)
	c.state.Store(int32(StateDisconnected))
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(ErrReconnectFailed)
	}
}

func (c *Connection) waitIdentity(ctx context.Context) bool {
	select {
	case <-c.identityReady:
		return true
	case <-ctx.Done():
		return false
	}
}

// replaySubscriptions resends the union of every still-active query as
// one batch Subscribe and waits for its InitialSubscription before
// returning, fulfilling the "no reducer call until replay completes"
// ordering from outside this function (the caller only stores tr, thus
// unblocking reducer calls, once this returns).
func (c *Connection) replaySubscriptions(tr *transport) error {
	queries := c.subs.allQueries()
	if len(queries) == 0 {
		return nil
	}

	reqID := c.reqIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.Subscribe{Queries: queries, RequestID: reqID})
	if err != nil {
		return err
	}

	ch := c.pending.register(reqID)
	if err := tr.writeBinary(b); err != nil {
		c.pending.forget(reqID)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()
	_, err = awaitResult(ctx, ch, func() { c.pending.forget(reqID) })
	return err
}
