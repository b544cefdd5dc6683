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

package wire

import (
	"github.com/pkg/errors"

	"github.com/relaydb/relay-client-go/atn"
)

// ReducerCallFlags controls how the server acknowledges a CallReducer /
// CallProcedure request.
type ReducerCallFlags uint8

const (
	// FullUpdate is the default: wait for the matching TransactionUpdate.
	FullUpdate ReducerCallFlags = 0
	// NoSuccessNotify suppresses the success notification unless rows the
	// caller is subscribed to were touched.
	NoSuccessNotify ReducerCallFlags = 1
)

// Client message tags (§4.B).
const (
	TagCallReducer byte = iota
	TagSubscribe
	TagOneOffQuery
	TagSubscribeSingle
	TagSubscribeMulti
	TagUnsubscribe
	TagUnsubscribeMulti
	TagCallProcedure
)

// ClientMessage is the closed sum type of every frame a client may send.
// Each variant encodes itself through its own Encode method; the
// unexported clientMessage method keeps the set of variants closed to
// this package, so there is no "unknown variant" case for encoding.
type ClientMessage interface {
	clientMessage()
	Encode(e *atn.Encoder) error
}

type CallReducer struct {
	Name      string
	Args      []byte
	RequestID uint32
	Flags     ReducerCallFlags
}

func (CallReducer) clientMessage() {}

func (m CallReducer) Encode(e *atn.Encoder) error {
	e.PutU8(TagCallReducer)
	if err := e.PutString(m.Name); err != nil {
		return err
	}
	if err := e.PutBytes(m.Args); err != nil {
		return err
	}
	e.PutU32(m.RequestID)
	e.PutU8(uint8(m.Flags))
	return nil
}

type Subscribe struct {
	Queries   []string
	RequestID uint32
}

func (Subscribe) clientMessage() {}

func (m Subscribe) Encode(e *atn.Encoder) error {
	e.PutU8(TagSubscribe)
	if err := e.PutSeqFunc(len(m.Queries), func(e *atn.Encoder, i int) error {
		return e.PutString(m.Queries[i])
	}); err != nil {
		return err
	}
	e.PutU32(m.RequestID)
	return nil
}

type OneOffQuery struct {
	MessageID []byte
	Query     string
}

func (OneOffQuery) clientMessage() {}

func (m OneOffQuery) Encode(e *atn.Encoder) error {
	e.PutU8(TagOneOffQuery)
	if err := e.PutBytes(m.MessageID); err != nil {
		return err
	}
	return e.PutString(m.Query)
}

type SubscribeSingle struct {
	Query     string
	RequestID uint32
	QueryID   uint32
}

func (SubscribeSingle) clientMessage() {}

func (m SubscribeSingle) Encode(e *atn.Encoder) error {
	e.PutU8(TagSubscribeSingle)
	if err := e.PutString(m.Query); err != nil {
		return err
	}
	e.PutU32(m.RequestID)
	e.PutU32(m.QueryID)
	return nil
}

type SubscribeMulti struct {
	Queries   []string
	RequestID uint32
	QueryID   uint32
}

func (SubscribeMulti) clientMessage() {}

func (m SubscribeMulti) Encode(e *atn.Encoder) error {
	e.PutU8(TagSubscribeMulti)
	if err := e.PutSeqFunc(len(m.Queries), func(e *atn.Encoder, i int) error {
		return e.PutString(m.Queries[i])
	}); err != nil {
		return err
	}
	e.PutU32(m.RequestID)
	e.PutU32(m.QueryID)
	return nil
}

type Unsubscribe struct {
	RequestID uint32
	QueryID   uint32
}

func (Unsubscribe) clientMessage() {}

func (m Unsubscribe) Encode(e *atn.Encoder) error {
	e.PutU8(TagUnsubscribe)
	e.PutU32(m.RequestID)
	e.PutU32(m.QueryID)
	return nil
}

type UnsubscribeMulti struct {
	RequestID uint32
	QueryID   uint32
}

func (UnsubscribeMulti) clientMessage() {}

func (m UnsubscribeMulti) Encode(e *atn.Encoder) error {
	e.PutU8(TagUnsubscribeMulti)
	e.PutU32(m.RequestID)
	e.PutU32(m.QueryID)
	return nil
}

type CallProcedure struct {
	Name      string
	Args      []byte
	RequestID uint32
	Flags     ReducerCallFlags
}

func (CallProcedure) clientMessage() {}

func (m CallProcedure) Encode(e *atn.Encoder) error {
	e.PutU8(TagCallProcedure)
	if err := e.PutString(m.Name); err != nil {
		return err
	}
	if err := e.PutBytes(m.Args); err != nil {
		return err
	}
	e.PutU32(m.RequestID)
	e.PutU8(uint8(m.Flags))
	return nil
}

// EncodeClientMessage serializes a ClientMessage to its ATN wire form.
func EncodeClientMessage(m ClientMessage) ([]byte, error) {
	e := atn.NewEncoder()
	defer e.Release()
	if err := m.Encode(e); err != nil {
		return nil, err
	}
	out := make([]byte, e.Len())
	copy(out, e.Bytes())
	return out, nil
}

// DecodeClientMessage parses a ClientMessage frame. This is not needed by
// the client itself (it only ever encodes these), but it completes the
// codec symmetrically for server-side or fixture tooling built against
// this module, and lets decoder-robustness tests exercise both unions
// identically.
func DecodeClientMessage(b []byte) (ClientMessage, error) {
	d := atn.NewDecoder(b)
	tag, err := d.GetEnumTag(TagCallReducer, TagSubscribe, TagOneOffQuery, TagSubscribeSingle,
		TagSubscribeMulti, TagUnsubscribe, TagUnsubscribeMulti, TagCallProcedure)
	if err != nil {
		if errors.Is(err, atn.ErrInvalidEnumTag) {
			return nil, errors.Wrap(errUnknownClientTag, err.Error())
		}
		return nil, newError("decode ClientMessage tag: %v", err)
	}

	switch tag {
	case TagCallReducer:
		var m CallReducer
		var err error
		if m.Name, err = d.GetString(); err != nil {
			return nil, err
		}
		if m.Args, err = d.GetBytes(); err != nil {
			return nil, err
		}
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		flags, err := d.GetU8()
		if err != nil {
			return nil, err
		}
		m.Flags = ReducerCallFlags(flags)
		return m, nil

	case TagSubscribe:
		var m Subscribe
		if _, err := d.GetSeqFunc(func(d *atn.Decoder, i int) error {
			s, err := d.GetString()
			m.Queries = append(m.Queries, s)
			return err
		}); err != nil {
			return nil, err
		}
		rid, err := d.GetU32()
		if err != nil {
			return nil, err
		}
		m.RequestID = rid
		return m, nil

	case TagOneOffQuery:
		var m OneOffQuery
		var err error
		if m.MessageID, err = d.GetBytes(); err != nil {
			return nil, err
		}
		if m.Query, err = d.GetString(); err != nil {
			return nil, err
		}
		return m, nil

	case TagSubscribeSingle:
		var m SubscribeSingle
		var err error
		if m.Query, err = d.GetString(); err != nil {
			return nil, err
		}
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		if m.QueryID, err = d.GetU32(); err != nil {
			return nil, err
		}
		return m, nil

	case TagSubscribeMulti:
		var m SubscribeMulti
		if _, err := d.GetSeqFunc(func(d *atn.Decoder, i int) error {
			s, err := d.GetString()
			m.Queries = append(m.Queries, s)
			return err
		}); err != nil {
			return nil, err
		}
		var err error
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		if m.QueryID, err = d.GetU32(); err != nil {
			return nil, err
		}
		return m, nil

	case TagUnsubscribe:
		var m Unsubscribe
		var err error
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		if m.QueryID, err = d.GetU32(); err != nil {
			return nil, err
		}
		return m, nil

	case TagUnsubscribeMulti:
		var m UnsubscribeMulti
		var err error
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		if m.QueryID, err = d.GetU32(); err != nil {
			return nil, err
		}
		return m, nil

	case TagCallProcedure:
		var m CallProcedure
		var err error
		if m.Name, err = d.GetString(); err != nil {
			return nil, err
		}
		if m.Args, err = d.GetBytes(); err != nil {
			return nil, err
		}
		if m.RequestID, err = d.GetU32(); err != nil {
			return nil, err
		}
		flags, err := d.GetU8()
		if err != nil {
			return nil, err
		}
		m.Flags = ReducerCallFlags(flags)
		return m, nil

	default:
		return nil, errUnknownClientTag
	}
}
