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

// Package compress decompresses incoming WebSocket frames. Every frame
// the server sends starts with a one-byte compression tag (§4.C); the
// remaining bytes are either the raw ServerMessage (None) or a
// compressed blob that decodes to one once inflated.
package compress

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
)

// Frame-level compression tags.
const (
	TagNone byte = iota
	TagBrotli
	TagZlib
)

var (
	// ErrUnknownTag is returned for any leading byte other than
	// TagNone/TagBrotli/TagZlib. The caller must treat this as a fatal
	// protocol error (§8 property 11: compression tag 3 is invalid).
	ErrUnknownTag = errors.New("compress: unknown frame compression tag")
	// ErrInsufficientData is returned when a frame carries only the
	// leading tag byte and no payload for a compressed variant.
	ErrInsufficientData = errors.New("compress: frame has tag but no payload")
)

// initialGrowFactor and maxGrowFactor drive the retry below: Brotli
// decompression (whole frames and query updates) starts with a
// 4x-of-input-sized output buffer guess and, on overflow, retries exactly
// once with a 64x guess before giving up. Brotli's Go binding doesn't
// expose the decompressed size up front, so this mirrors the common
// "guess, retry bigger" pattern rather than streaming into an unbounded
// buffer. Zlib frames and gzip query updates do not go through this
// retry: they are read to the end with no growth bound.
const (
	initialGrowFactor = 4
	maxGrowFactor      = 64
)

// Inflate strips the leading compression tag from frame and returns the
// decompressed ServerMessage bytes.
func Inflate(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrInsufficientData
	}
	tag, payload := frame[0], frame[1:]

	switch tag {
	case TagNone:
		return payload, nil
	case TagBrotli:
		if len(payload) == 0 {
			return nil, ErrInsufficientData
		}
		return inflateWithRetry(payload, func(r io.Reader) io.Reader {
			return brotli.NewReader(r)
		})
	case TagZlib:
		if len(payload) == 0 {
			return nil, ErrInsufficientData
		}
		return inflateZlib(payload)
	default:
		return nil, errors.Wrapf(ErrUnknownTag, "tag %d", tag)
	}
}

// InflateQueryUpdate decompresses a single CompressableQueryUpdate's
// payload (Brotli or Gzip) as opposed to a whole frame; these never
// carry a leading tag byte of their own, since the wire.CompressableQueryUpdate
// tag already disambiguates the algorithm.
func InflateQueryUpdate(tag byte, payload []byte) ([]byte, error) {
	switch tag {
	case 1: // wire.QueryUpdateBrotli
		return inflateWithRetry(payload, func(r io.Reader) io.Reader {
			return brotli.NewReader(r)
		})
	case 2: // wire.QueryUpdateGzip
		return inflateGzip(payload)
	default:
		return nil, errors.Errorf("compress: tag %d is not a compressed query-update variant", tag)
	}
}

func inflateWithRetry(payload []byte, newReader func(io.Reader) io.Reader) ([]byte, error) {
	out, err := tryInflate(payload, newReader, len(payload)*initialGrowFactor)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, io.ErrShortBuffer) {
		return nil, errors.Wrap(err, "compress: decompress")
	}

	out, err = tryInflate(payload, newReader, len(payload)*maxGrowFactor)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, io.ErrShortBuffer) {
		return nil, errors.Wrap(err, "compress: decompress")
	}
	return nil, errors.Errorf("compress: payload exceeds %dx growth bound", maxGrowFactor)
}

// tryInflate decodes payload into a buffer capped at limit bytes. If the
// stream hasn't finished by the time the cap is hit, it reports
// io.ErrShortBuffer so the caller can retry with a larger cap.
func tryInflate(payload []byte, newReader func(io.Reader) io.Reader, limit int) ([]byte, error) {
	r := newReader(bytes.NewReader(payload))
	limited := io.LimitReader(r, int64(limit)+1)
	out, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, io.ErrShortBuffer
	}
	return out, nil
}

func inflateZlib(payload []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "compress: zlib header")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "compress: zlib decompress")
	}
	return out, nil
}

func inflateGzip(payload []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "compress: gzip header")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "compress: gzip decompress")
	}
	return out, nil
}
