package timeparser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventTime(t *testing.T) {
	want := time.Date(2026, 3, 14, 8, 30, 15, 0, time.UTC)

	tests := []struct {
		name  string
		input string
	}{
		{"rfc3339 utc", "2026-03-14T08:30:15Z"},
		{"rfc3339 offset", "2026-03-14T10:30:15+02:00"},
		{"space with offset", "2026-03-14 08:30:15+00:00"},
		{"no offset", "2026-03-14T08:30:15"},
		{"space no offset", "2026-03-14 08:30:15"},
		{"legacy gateway", "14/03/2026 08:30:15"},
		{"surrounding whitespace", "  2026-03-14T08:30:15Z "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventTime(tt.input)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseEventTime_Fractional(t *testing.T) {
	got, err := ParseEventTime("2026-03-14T08:30:15.250Z")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseEventTime_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "yesterday", "2026-13-40T99:00:00Z"} {
		_, err := ParseEventTime(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIsWithinTolerance(t *testing.T) {
	received := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsWithinTolerance(received, received, 0))
	assert.True(t, IsWithinTolerance(received.Add(-5*time.Minute), received, 5))
	assert.True(t, IsWithinTolerance(received.Add(5*time.Minute), received, 5))
	assert.False(t, IsWithinTolerance(received.Add(-5*time.Minute-time.Second), received, 5))
	assert.False(t, IsWithinTolerance(received.Add(6*time.Minute), received, 5))
}
