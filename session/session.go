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
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/atn"
	"github.com/relaydb/relay-client-go/cache"
	"github.com/relaydb/relay-client-go/internal/metrics"
	"github.com/relaydb/relay-client-go/internal/tracing"
	"github.com/relaydb/relay-client-go/logger"
	"github.com/relaydb/relay-client-go/wire"
)

// Connection is one client's persistent link to a database module. It
// is safe for concurrent use: writes (reducer calls, subscribe/
// unsubscribe requests) may be issued from any number of goroutines,
// while a single internal read loop applies every incoming row delta
// to the cache and routes responses back to their caller.
type Connection struct {
	cfg Config

	state atomic.Int32
	tr    atomic.Pointer[transport]

	cache   *cache.ClientCache
	pending *pendingCalls
	oneOff  *pendingOneOff
	subs    *subscriptionSet

	reqIDs   requestIDGen
	queryIDs requestIDGen

	extractorsMu sync.Mutex
	extractors   map[string]cache.PrimaryKeyExtractor

	identityMu    sync.Mutex
	identity      atn.Identity
	token         string
	connectionID  atn.ConnectionId
	identityReady chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewConnection validates cfg and builds a Connection. When
// cfg.AutoConnect is true (the default) it also dials and completes the
// handshake before returning.
func NewConnection(cfg Config) (*Connection, error) {
	if cfg.URL == "" || cfg.ModuleName == "" {
		return nil, errors.Wrap(ErrMissingConfiguration, "URL and ModuleName are required")
	}

	c := &Connection{
		cfg:           cfg,
		cache:         cache.New(),
		pending:       newPendingCalls(),
		oneOff:        newPendingOneOff(),
		subs:          newSubscriptionSet(),
		extractors:    make(map[string]cache.PrimaryKeyExtractor),
		identityReady: make(chan struct{}, 1),
		closeCh:       make(chan struct{}),
	}

	if cfg.AutoConnect {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Cache returns the row cache this connection feeds.
func (c *Connection) Cache() *cache.ClientCache { return c.cache }

// State reports the connection's current lifecycle stage.
func (c *Connection) State() State { return State(c.state.Load()) }

// Identity returns the identity and connection id the server assigned
// on handshake, and false if the handshake hasn't completed yet.
func (c *Connection) Identity() (atn.Identity, atn.ConnectionId, bool) {
	c.identityMu.Lock()
	defer c.identityMu.Unlock()
	if c.token == "" {
		return atn.Identity{}, 0, false
	}
	return c.identity, c.connectionID, true
}

// RegisterPrimaryKey tells the connection how to extract a primary key
// from table's raw row bytes, so same-row updates collapse correctly.
// Tables with no registered extractor fall back to treating the whole
// row as its own key.
func (c *Connection) RegisterPrimaryKey(table string, extractor cache.PrimaryKeyExtractor) {
	c.extractorsMu.Lock()
	defer c.extractorsMu.Unlock()
	c.extractors[table] = extractor
}

// Connect dials the server and blocks until the handshake's
// IdentityToken arrives or ctx is done. It is safe to call again after
// Disconnect.
func (c *Connection) Connect(ctx context.Context) (err error) {
	ctx, end := tracing.StartSpan(ctx, "Connect")
	defer end(&err)

	// A previous Disconnect closed closeCh and spent closeOnce; give this
	// session fresh ones so its ping loop, reconnect path and a later
	// Disconnect work again.
	select {
	case <-c.closeCh:
		c.closeCh = make(chan struct{})
		c.closeOnce = sync.Once{}
	default:
	}

	c.state.Store(int32(StateConnecting))
	tr, err := dial(ctx, c.cfg)
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}

	select {
	case <-c.identityReady:
	default:
	}

	c.tr.Store(tr)
	c.wg.Add(2)
	go c.readLoop(tr)
	go c.pingLoop(tr)

	select {
	case <-c.identityReady:
	case <-ctx.Done():
		_ = tr.close()
		c.state.Store(int32(StateDisconnected))
		return errors.Wrap(ErrConnectionFailed, "timed out waiting for identity token")
	}

	c.state.Store(int32(StateConnected))
	metrics.ConnectionState.Set(1)
	c.fireConnectCallbacks()
	return nil
}

// fireConnectCallbacks invokes OnIdentity then OnConnect, in that order,
// once a handshake (initial or post-reconnect) has completed.
func (c *Connection) fireConnectCallbacks() {
	if c.cfg.OnIdentity != nil {
		if id, connID, ok := c.Identity(); ok {
			c.cfg.OnIdentity(id, connID)
		}
	}
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect()
	}
}

func (c *Connection) pingLoop(tr *transport) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := tr.writePing(); err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Disconnect closes the connection and fails every call still awaiting
// a response with ErrConnectionClosed. It does not attempt to
// reconnect; call Connect again to re-establish a session.
func (c *Connection) Disconnect() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if tr := c.tr.Swap(nil); tr != nil {
			err = tr.close()
		}
		c.state.Store(int32(StateDisconnected))
		metrics.ConnectionState.Set(0)
		c.pending.drain(ErrConnectionClosed)
		c.oneOff.drain(ErrConnectionClosed)
		c.wg.Wait()
		if c.cfg.OnDisconnect != nil {
			c.cfg.OnDisconnect(nil)
		}
	})
	return err
}

func (c *Connection) currentTransport() (*transport, error) {
	tr := c.tr.Load()
	if tr == nil {
		return nil, ErrNotConnected
	}
	return tr, nil
}

// awaitResult blocks on ch until a value arrives or ctx is done,
// forgetting the pending registration on cancellation so the entry
// doesn't leak.
func awaitResult(ctx context.Context, ch <-chan any, forget func()) (any, error) {
	select {
	case v := <-ch:
		if err, ok := v.(error); ok {
			return nil, err
		}
		return v, nil
	case <-ctx.Done():
		forget()
		return nil, errors.Wrap(ErrCancelled, ctx.Err().Error())
	}
}

// CallReducer invokes a reducer and waits for its TransactionUpdate.
// When flags includes NoSuccessNotify, the server may not send one back
// unless the reducer touched a table the caller is subscribed to; in
// that case CallReducer returns as soon as the frame is written.
func (c *Connection) CallReducer(ctx context.Context, name string, args []byte, flags wire.ReducerCallFlags) (err error) {
	ctx, end := tracing.StartSpan(ctx, "CallReducer:"+name)
	defer end(&err)

	tr, err := c.currentTransport()
	if err != nil {
		return err
	}

	reqID := c.reqIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.CallReducer{Name: name, Args: args, RequestID: reqID, Flags: flags})
	if err != nil {
		return err
	}

	if flags&wire.NoSuccessNotify != 0 {
		return c.send(tr, b)
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ReducerCallTimeout)
	defer cancel()

	v, err := awaitResult(callCtx, ch, func() { c.pending.forget(reqID) })
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ErrReducerTimeout
		}
		return err
	}
	res := v.(reducerResult)
	return res.err
}

// CallProcedure invokes a procedure and returns its success payload.
func (c *Connection) CallProcedure(ctx context.Context, name string, args []byte, flags wire.ReducerCallFlags) (result []byte, err error) {
	ctx, end := tracing.StartSpan(ctx, "CallProcedure:"+name)
	defer end(&err)

	tr, err := c.currentTransport()
	if err != nil {
		return nil, err
	}

	reqID := c.reqIDs.nextID()
	b, err := wire.EncodeClientMessage(wire.CallProcedure{Name: name, Args: args, RequestID: reqID, Flags: flags})
	if err != nil {
		return nil, err
	}

	ch := c.pending.register(reqID)
	if err := c.send(tr, b); err != nil {
		c.pending.forget(reqID)
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.ReducerCallTimeout)
	defer cancel()

	v, err := awaitResult(callCtx, ch, func() { c.pending.forget(reqID) })
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrReducerTimeout
		}
		return nil, err
	}
	res := v.(reducerResult)
	return res.args, res.err
}

// OneOffQuery runs a single read-only SQL query against the module and
// returns its result tables, bypassing the subscription system.
func (c *Connection) OneOffQuery(ctx context.Context, query string) ([]wire.OneOffTable, error) {
	tr, err := c.currentTransport()
	if err != nil {
		return nil, err
	}

	id := newMessageID()
	b, err := wire.EncodeClientMessage(wire.OneOffQuery{MessageID: id, Query: query})
	if err != nil {
		return nil, err
	}

	ch := c.oneOff.register(id)
	if err := c.send(tr, b); err != nil {
		c.oneOff.forget(id)
		return nil, err
	}

	v, err := awaitResult(ctx, ch, func() { c.oneOff.forget(id) })
	if err != nil {
		return nil, err
	}
	resp := v.(wire.OneOffQueryResponse)
	if resp.HasError {
		return nil, errors.Wrap(ErrReducerCallFailed, resp.Error)
	}
	return resp.Tables, nil
}

func (c *Connection) send(tr *transport, b []byte) error {
	if err := tr.writeBinary(b); err != nil {
		return err
	}
	metrics.FramesSent.Inc()
	return nil
}

func logDisconnect(reason error) {
	logger.Warnf("session: connection lost: %v", reason)
}
