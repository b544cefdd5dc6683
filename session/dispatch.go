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
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/cache"
	"github.com/relaydb/relay-client-go/internal/metrics"
	"github.com/relaydb/relay-client-go/logger"
	"github.com/relaydb/relay-client-go/wire"
	"github.com/relaydb/relay-client-go/wire/compress"
)

// reducerResult is what a CallReducer/CallProcedure waiter receives
// once its TransactionUpdate/ProcedureResult arrives.
type reducerResult struct {
	energyConsumed uint64
	args           []byte // ProcedureResult success payload
	err            error
}

// readLoop owns the single reader of the transport and is the only
// goroutine that applies row deltas to the cache, so row events are
// applied and published strictly in the order the server produced them.
func (c *Connection) readLoop(tr *transport) {
	defer c.wg.Done()
	for {
		frame, err := tr.readBinary()
		if err != nil {
			c.handleReadError(err)
			return
		}
		if err := c.handleFrame(frame); err != nil {
			c.handleReadError(err)
			return
		}
	}
}

// handleFrame decodes and dispatches one frame. A frame that fails to
// decompress or decode is a corrupted stream, not a droppable message:
// it returns an error so readLoop treats it exactly like a transport
// read failure and starts reconnecting.
func (c *Connection) handleFrame(frame []byte) error {
	payload, err := compress.Inflate(frame)
	if err != nil {
		metrics.FrameDecodeErrors.Inc()
		return errors.Wrap(err, "session: undecodable frame")
	}

	msg, err := wire.DecodeServerMessage(payload)
	if err != nil {
		metrics.FrameDecodeErrors.Inc()
		return errors.Wrap(err, "session: undecodable frame")
	}
	metrics.FramesReceived.WithLabelValues(wire.MessageName(msg.Tag())).Inc()

	switch m := msg.(type) {
	case wire.IdentityToken:
		c.onIdentityToken(m)
	case wire.InitialSubscription:
		c.applyDatabaseUpdate(m.Update)
		c.pending.deliver(m.RequestID, m)
	case wire.TransactionUpdate:
		c.onTransactionUpdate(m)
	case wire.TransactionUpdateLight:
		c.applyTableUpdate(m.Update, false)
		c.pending.deliver(m.RequestID, m)
	case wire.SubscribeApplied:
		c.applyTableUpdate(m.Table, false)
		c.pending.deliver(m.RequestID, m)
	case wire.UnsubscribeApplied:
		c.applyTableUpdate(m.Table, true)
		c.pending.deliver(m.RequestID, m)
	case wire.SubscribeMultiApplied:
		c.applyDatabaseUpdate(m.Update)
		c.pending.deliver(m.RequestID, m)
	case wire.UnsubscribeMultiApplied:
		for _, t := range m.Update.Tables {
			c.applyTableUpdate(t, true)
		}
		c.pending.deliver(m.RequestID, m)
	case wire.SubscriptionError:
		c.onSubscriptionError(m)
	case wire.OneOffQueryResponse:
		c.oneOff.deliver(m.MessageID, m)
	case wire.ProcedureResult:
		c.onProcedureResult(m)
	default:
		logger.Warnf("session: unhandled server message tag %d", msg.Tag())
	}
	return nil
}

func (c *Connection) onIdentityToken(m wire.IdentityToken) {
	c.identityMu.Lock()
	c.identity = m.Identity
	c.token = m.Token
	c.connectionID = m.ConnectionID
	c.identityMu.Unlock()
	select {
	case c.identityReady <- struct{}{}:
	default:
	}
}

func (c *Connection) onSubscriptionError(m wire.SubscriptionError) {
	if !m.HasRequestID {
		logger.Warnf("session: subscription error with no request id, dropping all subscriptions: %s", m.Error)
		c.cache.Reset()
		c.subs.clear()
		return
	}
	c.pending.deliver(m.RequestID, errors.Wrap(ErrSubscriptionFailed, m.Error))
}

func (c *Connection) onTransactionUpdate(m wire.TransactionUpdate) {
	switch m.Status.Tag {
	case wire.StatusCommitted:
		c.applyDatabaseUpdate(m.Status.Update)
		c.pending.deliver(m.ReducerCall.RequestID, reducerResult{energyConsumed: m.EnergyConsumed})
	case wire.StatusFailed:
		err := wrapReducerError(ErrReducerCallFailed, m.Status.FailMsg)
		c.pending.deliver(m.ReducerCall.RequestID, reducerResult{energyConsumed: m.EnergyConsumed, err: err})
	case wire.StatusOutOfEnergy:
		c.pending.deliver(m.ReducerCall.RequestID, reducerResult{energyConsumed: m.EnergyConsumed, err: ErrReducerOutOfEnergy})
	}
}

func (c *Connection) onProcedureResult(m wire.ProcedureResult) {
	switch m.Status.Tag {
	case wire.ProcedureSuccess:
		c.pending.deliver(m.RequestID, reducerResult{energyConsumed: m.EnergyConsumed, args: m.Status.Args})
	case wire.ProcedureFailure:
		err := wrapReducerError(ErrReducerCallFailed, m.Status.FailMsg)
		c.pending.deliver(m.RequestID, reducerResult{energyConsumed: m.EnergyConsumed, err: err})
	}
}

func (c *Connection) applyDatabaseUpdate(update wire.DatabaseUpdate) {
	for _, t := range update.Tables {
		c.applyTableUpdate(t, false)
	}
}

// applyTableUpdate merges one table's CompressableQueryUpdates into the
// cache. When invert is true (the UnsubscribeApplied/UnsubscribeMultiApplied
// case), the rows the server lists as inserted are the rows leaving the
// client's view, so deletes and inserts are swapped before merging.
func (c *Connection) applyTableUpdate(t wire.TableUpdate, invert bool) {
	var deletes, inserts [][]byte
	var errs *multierror.Error
	for _, cu := range t.Updates {
		d, i, err := decodeCompressedRows(cu)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		deletes = append(deletes, d...)
		inserts = append(inserts, i...)
	}
	if errs != nil {
		metrics.FrameDecodeErrors.Add(float64(errs.Len()))
		logger.Errorf("session: dropped %d of %d row deltas for table %q: %v", errs.Len(), len(t.Updates), t.TableName, errs)
	}
	if invert {
		deletes, inserts = inserts, deletes
	}
	extractor := c.extractorFor(t.TableName)
	c.cache.ApplyTable(t.TableName, extractor, deletes, inserts)
}

func decodeCompressedRows(cu wire.CompressableQueryUpdate) (deletes, inserts [][]byte, err error) {
	switch cu.Tag {
	case wire.QueryUpdateUncompressed:
		if deletes, err = cu.Uncompressed.Deletes.Split(); err != nil {
			return nil, nil, err
		}
		if inserts, err = cu.Uncompressed.Inserts.Split(); err != nil {
			return nil, nil, err
		}
		return deletes, inserts, nil
	case wire.QueryUpdateBrotli, wire.QueryUpdateGzip:
		raw, err := compress.InflateQueryUpdate(cu.Tag, cu.Compressed)
		if err != nil {
			return nil, nil, err
		}
		qu, err := wire.DecodeQueryUpdate(raw)
		if err != nil {
			return nil, nil, err
		}
		if deletes, err = qu.Deletes.Split(); err != nil {
			return nil, nil, err
		}
		if inserts, err = qu.Inserts.Split(); err != nil {
			return nil, nil, err
		}
		return deletes, inserts, nil
	default:
		return nil, nil, wire.ErrUnknownCompressableTag
	}
}

func (c *Connection) extractorFor(table string) cache.PrimaryKeyExtractor {
	c.extractorsMu.Lock()
	defer c.extractorsMu.Unlock()
	if ex, ok := c.extractors[table]; ok {
		return ex
	}
	return cache.IdentityExtractor()
}

func wrapReducerError(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}
