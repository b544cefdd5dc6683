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

package atn

import "time"

// Timestamp is microseconds since the Unix epoch. The wire form may be
// signed or unsigned 64-bit depending on the field; Timestamp itself
// stores the signed form, which covers both (an unsigned wire value never
// exceeds int64 range in practice for this protocol's horizon).
type Timestamp int64

func (e *Encoder) PutTimestamp(t Timestamp) { e.PutI64(int64(t)) }

func (d *Decoder) GetTimestamp() (Timestamp, error) {
	v, err := d.GetI64()
	return Timestamp(v), err
}

// Time converts to a time.Time in UTC.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(t)).UTC()
}

// TimestampFromTime converts a time.Time to microsecond-precision
// Timestamp.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Add returns t advanced by d.
func (t Timestamp) Add(d Duration) Timestamp {
	return t + Timestamp(d/1000)
}

// Duration is signed nanoseconds, additive with Timestamp.
type Duration int64

func (e *Encoder) PutDuration(d Duration) { e.PutI64(int64(d)) }

func (d *Decoder) GetDuration() (Duration, error) {
	v, err := d.GetI64()
	return Duration(v), err
}

func (d Duration) AsTimeDuration() time.Duration { return time.Duration(d) }
