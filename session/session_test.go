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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaydb/relay-client-go/atn"
	"github.com/relaydb/relay-client-go/cache"
	"github.com/relaydb/relay-client-go/wire"
)

// fakePeer is a minimal in-process stand-in for the server side of the
// protocol: it upgrades one WebSocket connection, sends an
// IdentityToken immediately (mimicking a real handshake), and lets the
// test drive further frames from there.
type fakePeer struct {
	server *httptest.Server
	connCh chan *websocket.Conn
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	p := &fakePeer{connCh: make(chan *websocket.Conn, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.connCh <- conn
	})
	p.server = httptest.NewServer(mux)
	return p
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func (p *fakePeer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-p.connCh:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("peer never accepted a connection")
		return nil
	}
}

func (p *fakePeer) close() {
	p.server.Close()
}

func sendServerMessage(t *testing.T, conn *websocket.Conn, body []byte) {
	t.Helper()
	frame := append([]byte{0}, body...) // TagNone compression prefix
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
}

func encodeServer(t *testing.T, tag byte, put func(e *atn.Encoder)) []byte {
	t.Helper()
	e := atn.NewEncoder()
	defer e.Release()
	e.PutU8(tag)
	put(e)
	out := make([]byte, e.Len())
	copy(out, e.Bytes())
	return out
}

func readClientMessage(t *testing.T, conn *websocket.Conn) wire.ClientMessage {
	t.Helper()
	_, b, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wire.DecodeClientMessage(b)
	require.NoError(t, err)
	return msg
}

func newTestConnection(t *testing.T, url string) *Connection {
	t.Helper()
	cfg := NewConfig(url, "test_module",
		WithConnectTimeout(2*time.Second),
		WithReducerCallTimeout(500*time.Millisecond),
		WithAutoConnect(false),
		WithMaxReconnectAttempts(2),
		WithReconnectDelay(10*time.Millisecond),
		WithMaxReconnectDelay(20*time.Millisecond),
	)
	c, err := NewConnection(cfg)
	require.NoError(t, err)
	return c
}

func identityTokenFrame(t *testing.T) []byte {
	return encodeServer(t, wire.TagIdentityToken, func(e *atn.Encoder) {
		e.PutIdentity(atn.Identity{1})
		require.NoError(t, e.PutString("tok"))
		e.PutConnectionId(atn.ConnectionId(7))
	})
}

func TestConnectCompletesHandshake(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	go func() {
		conn := peer.accept(t)
		sendServerMessage(t, conn, identityTokenFrame(t))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()

	assert.Equal(t, StateConnected, c.State())
	id, connID, ok := c.Identity()
	require.True(t, ok)
	assert.Equal(t, atn.Identity{1}, id)
	assert.Equal(t, atn.ConnectionId(7), connID)
}

func TestSubscribeSingleAppliesInitialRows(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	var serverConn *websocket.Conn
	connected := make(chan struct{})
	go func() {
		serverConn = peer.accept(t)
		sendServerMessage(t, serverConn, identityTokenFrame(t))
		close(connected)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	go func() {
		msg := readClientMessage(t, serverConn)
		sub, ok := msg.(wire.SubscribeSingle)
		require.True(t, ok)

		row := []byte{1, 2, 3}
		tableUpdate := wire.TableUpdate{
			TableID:   1,
			TableName: "user",
			NumRows:   1,
			Updates: []wire.CompressableQueryUpdate{{
				Tag: wire.QueryUpdateUncompressed,
				Uncompressed: wire.QueryUpdate{
					Inserts: wire.BsatnRowList{Hint: wire.RowSizeHint{Tag: wire.RowSizeHintFixedSize, FixedSize: uint16(len(row))}, Rows: row},
				},
			}},
		}
		frame := encodeServer(t, wire.TagSubscribeApplied, func(e *atn.Encoder) {
			e.PutU32(sub.RequestID)
			e.PutU32(sub.QueryID)
			e.PutDuration(atn.Duration(10))
			require.NoError(t, tableUpdate.Encode(e))
		})
		sendServerMessage(t, serverConn, frame)
	}()

	sub, err := c.SubscribeSingle(ctx, "SELECT * FROM user")
	require.NoError(t, err)
	assert.NotZero(t, sub.queryID)

	tc, ok := c.Cache().Table("user")
	require.True(t, ok)
	assert.Equal(t, 1, tc.Len())
}

func TestCallReducerSuccess(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	var serverConn *websocket.Conn
	connected := make(chan struct{})
	go func() {
		serverConn = peer.accept(t)
		sendServerMessage(t, serverConn, identityTokenFrame(t))
		close(connected)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	go func() {
		msg := readClientMessage(t, serverConn)
		call, ok := msg.(wire.CallReducer)
		require.True(t, ok)

		frame := encodeServer(t, wire.TagTransactionUpdate, func(e *atn.Encoder) {
			e.PutU8(wire.StatusCommitted)
			require.NoError(t, (wire.DatabaseUpdate{}).Encode(e))
			e.PutTimestamp(atn.Timestamp(1))
			e.PutIdentity(atn.Identity{})
			e.PutConnectionId(atn.ConnectionId(0))
			require.NoError(t, e.PutString(call.Name))
			e.PutU32(0)
			require.NoError(t, e.PutBytes(nil))
			e.PutU32(call.RequestID)
			e.PutU64(42)
			e.PutDuration(atn.Duration(5))
		})
		sendServerMessage(t, serverConn, frame)
	}()

	err := c.CallReducer(ctx, "add_user", []byte("args"), wire.FullUpdate)
	assert.NoError(t, err)
}

func TestCallReducerFailure(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	var serverConn *websocket.Conn
	connected := make(chan struct{})
	go func() {
		serverConn = peer.accept(t)
		sendServerMessage(t, serverConn, identityTokenFrame(t))
		close(connected)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	go func() {
		msg := readClientMessage(t, serverConn)
		call := msg.(wire.CallReducer)

		frame := encodeServer(t, wire.TagTransactionUpdate, func(e *atn.Encoder) {
			e.PutU8(wire.StatusFailed)
			require.NoError(t, e.PutString("constraint violated"))
			e.PutTimestamp(atn.Timestamp(1))
			e.PutIdentity(atn.Identity{})
			e.PutConnectionId(atn.ConnectionId(0))
			require.NoError(t, e.PutString(call.Name))
			e.PutU32(0)
			require.NoError(t, e.PutBytes(nil))
			e.PutU32(call.RequestID)
			e.PutU64(3)
			e.PutDuration(atn.Duration(1))
		})
		sendServerMessage(t, serverConn, frame)
	}()

	err := c.CallReducer(ctx, "add_user", []byte("args"), wire.FullUpdate)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReducerCallFailed)
}

func TestCallReducerTimeout(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	connected := make(chan struct{})
	go func() {
		conn := peer.accept(t)
		sendServerMessage(t, conn, identityTokenFrame(t))
		close(connected)
		// Never respond to the reducer call.
		_, _, _ = conn.ReadMessage()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	err := c.CallReducer(ctx, "slow_reducer", nil, wire.FullUpdate)
	assert.ErrorIs(t, err, ErrReducerTimeout)
}

func TestSubscriptionErrorDropsAllSubscriptions(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	var serverConn *websocket.Conn
	connected := make(chan struct{})
	go func() {
		serverConn = peer.accept(t)
		sendServerMessage(t, serverConn, identityTokenFrame(t))
		close(connected)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	c.Cache().ApplyTable("user", cache.IdentityExtractor(), nil, [][]byte{{1}})

	frame := encodeServer(t, wire.TagSubscriptionError, func(e *atn.Encoder) {
		e.PutDuration(atn.Duration(1))
		require.NoError(t, e.PutOptionalFunc(false, nil))
		require.NoError(t, e.PutOptionalFunc(false, nil))
		require.NoError(t, e.PutOptionalFunc(false, nil))
		require.NoError(t, e.PutString("internal error, please reconnect"))
	})
	sendServerMessage(t, serverConn, frame)

	require.Eventually(t, func() bool {
		_, ok := c.Cache().Table("user")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestFrameWithUnknownCompressionTagTriggersReconnect(t *testing.T) {
	peer := newFakePeer(t)
	defer peer.close()

	c := newTestConnection(t, wsURL(peer.server.URL))
	var serverConn *websocket.Conn
	connected := make(chan struct{})
	go func() {
		serverConn = peer.accept(t)
		sendServerMessage(t, serverConn, identityTokenFrame(t))
		close(connected)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Disconnect()
	<-connected

	// A second accept confirms the reconnect loop redialed the peer.
	reconnected := make(chan struct{})
	go func() {
		peer.accept(t)
		close(reconnected)
	}()

	// Tag 3 is not a valid frame compression tag (None/Brotli/Zlib are
	// 0/1/2); this is a fatal protocol error that must tear the
	// connection down and start reconnecting, not get dropped in place.
	require.NoError(t, serverConn.WriteMessage(websocket.BinaryMessage, []byte{3, 0xAA}))

	require.Eventually(t, func() bool {
		return c.State() == StateReconnecting || c.State() == StateConnected
	}, time.Second, 10*time.Millisecond)

	select {
	case <-reconnected:
	case <-time.After(time.Second):
		t.Fatal("peer never saw a reconnect attempt")
	}
}

func TestDelayForAttemptSchedule(t *testing.T) {
	base := 1 * time.Second
	max := 30 * time.Second
	assert.Equal(t, 1*time.Second, delayForAttempt(base, max, 0))
	assert.Equal(t, 2*time.Second, delayForAttempt(base, max, 1))
	assert.Equal(t, 4*time.Second, delayForAttempt(base, max, 2))
	assert.Equal(t, 8*time.Second, delayForAttempt(base, max, 3))
	assert.Equal(t, max, delayForAttempt(base, max, 10))
}
