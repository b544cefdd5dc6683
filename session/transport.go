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
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/common"
)

// subprotocol is the negotiated binary WebSocket subprotocol name this
// client speaks, reported during the handshake the way a user agent
// string would be.
const subprotocol = "v1.bin.relay"

// subscribePath is the well-known path segment a session URL must carry.
const subscribePath = "/database/subscribe/"

// buildURL appends the module's subscribe path to base unless base
// already carries it, so callers may pass either a bare host or a
// fully qualified subscribe URL.
func buildURL(base, moduleName string) string {
	if strings.Contains(base, subscribePath) {
		return base
	}
	return strings.TrimRight(base, "/") + subscribePath + moduleName
}

// transport owns one live WebSocket connection. Writes are serialized
// through a mutex because gorilla/websocket forbids concurrent writers;
// reads are only ever done from the single read-loop goroutine, so they
// need no locking of their own.
type transport struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func dial(ctx context.Context, cfg Config) (*transport, error) {
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	header.Set("User-Agent", common.UserAgent())

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.ConnectTimeout,
		Subprotocols:     []string{subprotocol},
	}

	url := buildURL(cfg.URL, cfg.ModuleName)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(ErrConnectionFailed, "dial %s: %v (http status %d)", url, err, resp.StatusCode)
		}
		return nil, errors.Wrapf(ErrConnectionFailed, "dial %s: %v", url, err)
	}
	return &transport{conn: conn}, nil
}

func (t *transport) writeBinary(b []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (t *transport) writePing() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (t *transport) readBinary() ([]byte, error) {
	for {
		kind, b, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return b, nil
		}
		// Ignore any non-binary control echoes the peer sends; the
		// protocol only ever carries frames as binary messages.
	}
}

func (t *transport) close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(2*time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}
