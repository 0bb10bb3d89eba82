// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"fmt"
	"math"
	"strconv"
)

// ServerTimestamp is a storage-server timestamp in integer milliseconds.
//
// The wire representation (JSON bodies and the X-Last-Modified /
// X-Weave-Timestamp headers) is fractional seconds, e.g. "1234567.89".
// Keeping the value in milliseconds internally avoids float comparison
// bugs when deciding whether a collection changed since the last sync.
type ServerTimestamp int64

// TimestampFromSeconds converts a wire value in fractional seconds.
func TimestampFromSeconds(secs float64) ServerTimestamp {
	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0
	}
	return ServerTimestamp(math.Round(secs * 1000.0))
}

// ParseServerTimestamp parses the header form ("1234567.89").
func ParseServerTimestamp(s string) (ServerTimestamp, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse server timestamp %q: %w", s, err)
	}
	return TimestampFromSeconds(secs), nil
}

// Millis returns the timestamp as integer milliseconds since the epoch.
func (t ServerTimestamp) Millis() int64 {
	return int64(t)
}

// String renders the wire form: seconds with millisecond precision.
func (t ServerTimestamp) String() string {
	return fmt.Sprintf("%d.%03d", int64(t)/1000, int64(t)%1000)
}

// MarshalJSON implements json.Marshaler using the fractional-second form.
func (t ServerTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler. The server emits a bare JSON
// number; some older clients wrote it as a string, so both are accepted.
func (t *ServerTimestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	ts, err := ParseServerTimestamp(s)
	if err != nil {
		return err
	}
	*t = ts
	return nil
}
