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

package compress

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func brotliCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func gzipCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestInflateNone(t *testing.T) {
	frame := append([]byte{TagNone}, []byte("hello")...)
	got, err := Inflate(frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestInflateBrotli(t *testing.T) {
	payload := bytes.Repeat([]byte("row-delta-payload"), 4096)
	frame := append([]byte{TagBrotli}, brotliCompress(t, payload)...)
	got, err := Inflate(frame)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestInflateZlib(t *testing.T) {
	payload := bytes.Repeat([]byte("another-payload"), 8192)
	frame := append([]byte{TagZlib}, zlibCompress(t, payload)...)
	got, err := Inflate(frame)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestInflateUnknownTag(t *testing.T) {
	_, err := Inflate([]byte{3, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownTag)
}

func TestInflateInsufficientData(t *testing.T) {
	_, err := Inflate([]byte{TagBrotli})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Inflate(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestInflateQueryUpdateGzip(t *testing.T) {
	payload := []byte("query-update-row-bytes")
	got, err := InflateQueryUpdate(2, gzipCompress(t, payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestInflateQueryUpdateUnknownTag(t *testing.T) {
	_, err := InflateQueryUpdate(9, []byte{1})
	assert.Error(t, err)
}
