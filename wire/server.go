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

// Server message tags (§4.B).
const (
	TagInitialSubscription byte = iota
	TagTransactionUpdate
	TagTransactionUpdateLight
	TagIdentityToken
	TagOneOffQueryResponse
	TagSubscribeApplied
	TagUnsubscribeApplied
	TagSubscriptionError
	TagSubscribeMultiApplied
	TagUnsubscribeMultiApplied
	TagProcedureResult
)

// ServerMessage is the closed sum type of every frame the server may
// send. Unknown tags are a hard decode error (§9): there is no silent
// fallback variant.
type ServerMessage interface {
	serverMessage()
	Tag() byte
}

// UpdateStatus tags.
const (
	StatusCommitted byte = iota
	StatusFailed
	StatusOutOfEnergy
)

// UpdateStatus is the outcome of a committed transaction.
type UpdateStatus struct {
	Tag      byte
	Update   DatabaseUpdate // valid when Tag == StatusCommitted
	FailMsg  string         // valid when Tag == StatusFailed
}

func decodeUpdateStatus(d *atn.Decoder) (UpdateStatus, error) {
	tag, err := d.GetEnumTag(StatusCommitted, StatusFailed, StatusOutOfEnergy)
	if err != nil {
		return UpdateStatus{}, newError("decode UpdateStatus: %v", err)
	}
	s := UpdateStatus{Tag: tag}
	switch tag {
	case StatusCommitted:
		s.Update, err = decodeDatabaseUpdate(d)
		return s, err
	case StatusFailed:
		s.FailMsg, err = d.GetString()
		return s, err
	case StatusOutOfEnergy:
		return s, nil
	default:
		return s, newError("decode UpdateStatus: unreachable tag %d", tag)
	}
}

// ReducerCallInfo identifies the reducer invocation a TransactionUpdate
// reports on.
type ReducerCallInfo struct {
	Name      string
	ReducerID uint32
	Args      []byte
	RequestID uint32
}

func decodeReducerCallInfo(d *atn.Decoder) (ReducerCallInfo, error) {
	var info ReducerCallInfo
	var err error
	if info.Name, err = d.GetString(); err != nil {
		return info, err
	}
	if info.ReducerID, err = d.GetU32(); err != nil {
		return info, err
	}
	if info.Args, err = d.GetBytes(); err != nil {
		return info, err
	}
	info.RequestID, err = d.GetU32()
	return info, err
}

type TransactionUpdate struct {
	Status             UpdateStatus
	Timestamp          atn.Timestamp
	CallerIdentity     atn.Identity
	CallerConnectionID atn.ConnectionId
	ReducerCall        ReducerCallInfo
	EnergyConsumed     uint64
	HostDuration       atn.Duration
}

func (TransactionUpdate) serverMessage()  {}
func (TransactionUpdate) Tag() byte       { return TagTransactionUpdate }

func decodeTransactionUpdate(d *atn.Decoder) (TransactionUpdate, error) {
	var m TransactionUpdate
	var err error
	if m.Status, err = decodeUpdateStatus(d); err != nil {
		return m, err
	}
	if m.Timestamp, err = d.GetTimestamp(); err != nil {
		return m, err
	}
	if m.CallerIdentity, err = d.GetIdentity(); err != nil {
		return m, err
	}
	if m.CallerConnectionID, err = d.GetConnectionId(); err != nil {
		return m, err
	}
	if m.ReducerCall, err = decodeReducerCallInfo(d); err != nil {
		return m, err
	}
	if m.EnergyConsumed, err = d.GetU64(); err != nil {
		return m, err
	}
	m.HostDuration, err = d.GetDuration()
	return m, err
}

// TransactionUpdateLight is a trimmed TransactionUpdate the server may
// send when the caller isn't owed a full reducer-call report but a
// subscribed table still changed (e.g. another client's write).
type TransactionUpdateLight struct {
	RequestID uint32
	Update    TableUpdate
}

func (TransactionUpdateLight) serverMessage() {}
func (TransactionUpdateLight) Tag() byte      { return TagTransactionUpdateLight }

func decodeTransactionUpdateLight(d *atn.Decoder) (TransactionUpdateLight, error) {
	var m TransactionUpdateLight
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	m.Update, err = decodeTableUpdate(d)
	return m, err
}

type InitialSubscription struct {
	Update    DatabaseUpdate
	RequestID uint32
	Duration  atn.Duration
}

func (InitialSubscription) serverMessage() {}
func (InitialSubscription) Tag() byte      { return TagInitialSubscription }

func decodeInitialSubscription(d *atn.Decoder) (InitialSubscription, error) {
	var m InitialSubscription
	var err error
	if m.Update, err = decodeDatabaseUpdate(d); err != nil {
		return m, err
	}
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	m.Duration, err = d.GetDuration()
	return m, err
}

type IdentityToken struct {
	Identity     atn.Identity
	Token        string
	ConnectionID atn.ConnectionId
}

func (IdentityToken) serverMessage() {}
func (IdentityToken) Tag() byte      { return TagIdentityToken }

func decodeIdentityToken(d *atn.Decoder) (IdentityToken, error) {
	var m IdentityToken
	var err error
	if m.Identity, err = d.GetIdentity(); err != nil {
		return m, err
	}
	if m.Token, err = d.GetString(); err != nil {
		return m, err
	}
	m.ConnectionID, err = d.GetConnectionId()
	return m, err
}

// OneOffTable is one table's worth of rows in a OneOffQueryResponse.
type OneOffTable struct {
	TableName string
	Rows      BsatnRowList
}

func decodeOneOffTable(d *atn.Decoder) (OneOffTable, error) {
	var t OneOffTable
	var err error
	if t.TableName, err = d.GetString(); err != nil {
		return t, err
	}
	t.Rows, err = decodeBsatnRowList(d)
	return t, err
}

type OneOffQueryResponse struct {
	MessageID     []byte
	Error         string
	HasError      bool
	Tables        []OneOffTable
	TotalDuration atn.Duration
}

func (OneOffQueryResponse) serverMessage() {}
func (OneOffQueryResponse) Tag() byte      { return TagOneOffQueryResponse }

func decodeOneOffQueryResponse(d *atn.Decoder) (OneOffQueryResponse, error) {
	var m OneOffQueryResponse
	var err error
	if m.MessageID, err = d.GetBytes(); err != nil {
		return m, err
	}
	m.HasError, err = d.GetOptionalFunc(func(d *atn.Decoder) error {
		var gerr error
		m.Error, gerr = d.GetString()
		return gerr
	})
	if err != nil {
		return m, err
	}
	if _, err = d.GetSeqFunc(func(d *atn.Decoder, i int) error {
		t, err := decodeOneOffTable(d)
		m.Tables = append(m.Tables, t)
		return err
	}); err != nil {
		return m, err
	}
	m.TotalDuration, err = d.GetDuration()
	return m, err
}

type SubscribeApplied struct {
	RequestID     uint32
	QueryID       uint32
	TotalDuration atn.Duration
	Table         TableUpdate
}

func (SubscribeApplied) serverMessage() {}
func (SubscribeApplied) Tag() byte      { return TagSubscribeApplied }

func decodeSubscribeApplied(d *atn.Decoder) (SubscribeApplied, error) {
	var m SubscribeApplied
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.QueryID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.TotalDuration, err = d.GetDuration(); err != nil {
		return m, err
	}
	m.Table, err = decodeTableUpdate(d)
	return m, err
}

type UnsubscribeApplied struct {
	RequestID     uint32
	QueryID       uint32
	TotalDuration atn.Duration
	Table         TableUpdate
}

func (UnsubscribeApplied) serverMessage() {}
func (UnsubscribeApplied) Tag() byte      { return TagUnsubscribeApplied }

func decodeUnsubscribeApplied(d *atn.Decoder) (UnsubscribeApplied, error) {
	var m UnsubscribeApplied
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.QueryID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.TotalDuration, err = d.GetDuration(); err != nil {
		return m, err
	}
	m.Table, err = decodeTableUpdate(d)
	return m, err
}

// SubscriptionError's RequestID is optional: an absent value means the
// client must drop all subscriptions (§4.E).
type SubscriptionError struct {
	TotalDuration atn.Duration
	HasRequestID  bool
	RequestID     uint32
	HasQueryID    bool
	QueryID       uint32
	HasTableID    bool
	TableID       uint32
	Error         string
}

func (SubscriptionError) serverMessage() {}
func (SubscriptionError) Tag() byte      { return TagSubscriptionError }

func decodeSubscriptionError(d *atn.Decoder) (SubscriptionError, error) {
	var m SubscriptionError
	var err error
	if m.TotalDuration, err = d.GetDuration(); err != nil {
		return m, err
	}
	if m.HasRequestID, err = d.GetOptionalFunc(func(d *atn.Decoder) error {
		var gerr error
		m.RequestID, gerr = d.GetU32()
		return gerr
	}); err != nil {
		return m, err
	}
	if m.HasQueryID, err = d.GetOptionalFunc(func(d *atn.Decoder) error {
		var gerr error
		m.QueryID, gerr = d.GetU32()
		return gerr
	}); err != nil {
		return m, err
	}
	if m.HasTableID, err = d.GetOptionalFunc(func(d *atn.Decoder) error {
		var gerr error
		m.TableID, gerr = d.GetU32()
		return gerr
	}); err != nil {
		return m, err
	}
	m.Error, err = d.GetString()
	return m, err
}

type SubscribeMultiApplied struct {
	RequestID     uint32
	QueryID       uint32
	TotalDuration atn.Duration
	Update        DatabaseUpdate
}

func (SubscribeMultiApplied) serverMessage() {}
func (SubscribeMultiApplied) Tag() byte      { return TagSubscribeMultiApplied }

func decodeSubscribeMultiApplied(d *atn.Decoder) (SubscribeMultiApplied, error) {
	var m SubscribeMultiApplied
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.QueryID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.TotalDuration, err = d.GetDuration(); err != nil {
		return m, err
	}
	m.Update, err = decodeDatabaseUpdate(d)
	return m, err
}

type UnsubscribeMultiApplied struct {
	RequestID     uint32
	QueryID       uint32
	TotalDuration atn.Duration
	Update        DatabaseUpdate
}

func (UnsubscribeMultiApplied) serverMessage() {}
func (UnsubscribeMultiApplied) Tag() byte      { return TagUnsubscribeMultiApplied }

func decodeUnsubscribeMultiApplied(d *atn.Decoder) (UnsubscribeMultiApplied, error) {
	var m UnsubscribeMultiApplied
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.QueryID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.TotalDuration, err = d.GetDuration(); err != nil {
		return m, err
	}
	m.Update, err = decodeDatabaseUpdate(d)
	return m, err
}

// ProcedureStatus tags.
const (
	ProcedureSuccess byte = iota
	ProcedureFailure
)

type ProcedureStatus struct {
	Tag     byte
	Args    []byte // valid when Tag == ProcedureSuccess
	FailMsg string // valid when Tag == ProcedureFailure
}

func decodeProcedureStatus(d *atn.Decoder) (ProcedureStatus, error) {
	tag, err := d.GetEnumTag(ProcedureSuccess, ProcedureFailure)
	if err != nil {
		return ProcedureStatus{}, newError("decode ProcedureStatus: %v", err)
	}
	s := ProcedureStatus{Tag: tag}
	switch tag {
	case ProcedureSuccess:
		s.Args, err = d.GetBytes()
		return s, err
	case ProcedureFailure:
		s.FailMsg, err = d.GetString()
		return s, err
	default:
		return s, newError("decode ProcedureStatus: unreachable tag %d", tag)
	}
}

type ProcedureResult struct {
	RequestID      uint32
	Status         ProcedureStatus
	EnergyConsumed uint64
	Duration       atn.Duration
}

func (ProcedureResult) serverMessage() {}
func (ProcedureResult) Tag() byte      { return TagProcedureResult }

func decodeProcedureResult(d *atn.Decoder) (ProcedureResult, error) {
	var m ProcedureResult
	var err error
	if m.RequestID, err = d.GetU32(); err != nil {
		return m, err
	}
	if m.Status, err = decodeProcedureStatus(d); err != nil {
		return m, err
	}
	if m.EnergyConsumed, err = d.GetU64(); err != nil {
		return m, err
	}
	m.Duration, err = d.GetDuration()
	return m, err
}

// DecodeServerMessage parses a ServerMessage frame (already decompressed
// — see wire/compress for the leading frame-level compression tag).
func DecodeServerMessage(b []byte) (ServerMessage, error) {
	d := atn.NewDecoder(b)
	tag, err := d.GetEnumTag(
		TagInitialSubscription, TagTransactionUpdate, TagTransactionUpdateLight,
		TagIdentityToken, TagOneOffQueryResponse, TagSubscribeApplied,
		TagUnsubscribeApplied, TagSubscriptionError, TagSubscribeMultiApplied,
		TagUnsubscribeMultiApplied, TagProcedureResult,
	)
	if err != nil {
		if errors.Is(err, atn.ErrInvalidEnumTag) {
			return nil, errors.Wrap(errUnknownServerTag, err.Error())
		}
		return nil, newError("decode ServerMessage tag: %v", err)
	}

	switch tag {
	case TagInitialSubscription:
		return decodeInitialSubscription(d)
	case TagTransactionUpdate:
		return decodeTransactionUpdate(d)
	case TagTransactionUpdateLight:
		return decodeTransactionUpdateLight(d)
	case TagIdentityToken:
		return decodeIdentityToken(d)
	case TagOneOffQueryResponse:
		return decodeOneOffQueryResponse(d)
	case TagSubscribeApplied:
		return decodeSubscribeApplied(d)
	case TagUnsubscribeApplied:
		return decodeUnsubscribeApplied(d)
	case TagSubscriptionError:
		return decodeSubscriptionError(d)
	case TagSubscribeMultiApplied:
		return decodeSubscribeMultiApplied(d)
	case TagUnsubscribeMultiApplied:
		return decodeUnsubscribeMultiApplied(d)
	case TagProcedureResult:
		return decodeProcedureResult(d)
	default:
		return nil, errUnknownServerTag
	}
}

// MessageName returns a human-readable variant name for diagnostics, so
// a logged decode failure names the variant rather than a bare tag
// number.
func MessageName(tag byte) string {
	names := map[byte]string{
		TagInitialSubscription:     "InitialSubscription",
		TagTransactionUpdate:       "TransactionUpdate",
		TagTransactionUpdateLight:  "TransactionUpdateLight",
		TagIdentityToken:           "IdentityToken",
		TagOneOffQueryResponse:     "OneOffQueryResponse",
		TagSubscribeApplied:        "SubscribeApplied",
		TagUnsubscribeApplied:      "UnsubscribeApplied",
		TagSubscriptionError:       "SubscriptionError",
		TagSubscribeMultiApplied:   "SubscribeMultiApplied",
		TagUnsubscribeMultiApplied: "UnsubscribeMultiApplied",
		TagProcedureResult:         "ProcedureResult",
	}
	if n, ok := names[tag]; ok {
		return n
	}
	return "Unknown"
}
