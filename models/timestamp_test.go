// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerTimestamp_StringKeepsMilliseconds(t *testing.T) {
	tests := []struct {
		millis int64
		want   string
	}{
		{millis: 0, want: "0.000"},
		{millis: 1555555555000, want: "1555555555.000"},
		{millis: 1555555555120, want: "1555555555.120"},
		{millis: 1555555555123, want: "1555555555.123"},
		{millis: 7, want: "0.007"},
	}
	for _, tt := range tests {
		ts := ServerTimestamp(tt.millis)
		assert.Equal(t, tt.want, ts.String())

		// rendering and parsing are inverses at full precision
		back, err := ParseServerTimestamp(ts.String())
		require.NoError(t, err)
		assert.Equal(t, ts, back)
	}
}

func TestParseServerTimestamp(t *testing.T) {
	got, err := ParseServerTimestamp("1234567.89")
	require.NoError(t, err)
	assert.Equal(t, ServerTimestamp(1234567890), got)

	got, err = ParseServerTimestamp("123.456")
	require.NoError(t, err)
	assert.Equal(t, ServerTimestamp(123456), got)

	_, err = ParseServerTimestamp("not-a-number")
	assert.Error(t, err)

	// negative and non-finite inputs clamp to the epoch
	assert.Equal(t, ServerTimestamp(0), TimestampFromSeconds(-5))
}

func TestServerTimestamp_JSONRoundTrip(t *testing.T) {
	raw, err := json.Marshal(ServerTimestamp(1555555999123))
	require.NoError(t, err)
	assert.Equal(t, "1555555999.123", string(raw))

	var ts ServerTimestamp
	require.NoError(t, json.Unmarshal([]byte(`1555555999.12`), &ts))
	assert.Equal(t, ServerTimestamp(1555555999120), ts)

	// older clients wrote the value as a string
	require.NoError(t, json.Unmarshal([]byte(`"123.456"`), &ts))
	assert.Equal(t, ServerTimestamp(123456), ts)
}
