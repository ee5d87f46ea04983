package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTag(t *testing.T) {
	assert.Equal(t, "OUT", StreamOut.Tag())
	assert.Equal(t, "ERR", StreamErr.Tag())
}

func TestLogLineFormat(t *testing.T) {
	ts := time.Date(2026, 10, 17, 9, 30, 0, 123000000, time.UTC)
	line := LogLine{Timestamp: ts, Stream: StreamErr, Text: "ERROR: invalid token"}

	assert.Equal(t, "2026-10-17T09:30:00.123Z [ERR] ERROR: invalid token", line.Format())
}

func TestEventKinds(t *testing.T) {
	tests := []struct {
		event    Event
		expected EventKind
	}{
		{Mention{}, EventMention},
		{ToolCall{}, EventToolCall},
		{ErrorEvent{}, EventError},
		{Warning{}, EventWarning},
	}

	for _, tt := range tests {
		t.Run(string(tt.expected), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.Kind())
		})
	}
}

func TestNewSessionID(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 30, 5, 42000000, time.FixedZone("CEST", 2*3600))

	id := NewSessionID(start)
	assert.Equal(t, "session-2026-10-17T07-30-05-042Z", id)
	assert.NotContains(t, id, ":")
	assert.NotContains(t, id, ".")
}

func TestSessionCloseOnce(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := NewSession(start)

	assert.Zero(t, s.Duration())
	require.False(t, s.Closed())

	require.True(t, s.Close(start.Add(90*time.Second), 1, "1"))
	require.False(t, s.Close(start.Add(time.Hour), 0, ReasonNormal))

	code, reason := s.Exit()
	assert.Equal(t, 1, code)
	assert.Equal(t, "1", reason)
	assert.Equal(t, 90*time.Second, s.Duration())
	assert.Equal(t, start.Add(90*time.Second), s.End())
}

func TestHealthSnapshotSince(t *testing.T) {
	last := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	h := HealthSnapshot{ActivityCount: 3, LastActivity: last}

	assert.Equal(t, 5*time.Minute, h.Since(last.Add(5*time.Minute)))
}
