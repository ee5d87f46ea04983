package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milwrite/botwatch/internal/classify"
	"github.com/milwrite/botwatch/internal/domain"
)

func TestTrackerScenarioA(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, 0)
	c := classify.Default(nil)

	lines := []string{
		"🔔 [MENTION DETECTED] alice mentioned the bot in #general",
		"build step ok",
		"ERROR: invalid token",
	}
	for i, l := range lines {
		ts := start.Add(time.Duration(i+1) * time.Second)
		tr.Observe(ts, c.Classify(ts, l))
	}

	snap := tr.Snapshot()
	assert.EqualValues(t, 3, snap.Health.ActivityCount)
	assert.Equal(t, start.Add(3*time.Second), snap.Health.LastActivity)
	require.Len(t, snap.Mentions, 1)
	assert.Equal(t, "alice", snap.Mentions[0].User)
	assert.Equal(t, "general", snap.Mentions[0].Channel)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, domain.SeverityAuth, snap.Errors[0].Severity)
	assert.Empty(t, snap.Warnings)
	assert.Empty(t, snap.ToolCalls)
}

func TestTrackerRecordDoesNotCountActivity(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, 0)

	tr.Record(domain.Warning{Timestamp: start.Add(time.Minute), Raw: "possible hang"})
	tr.Record(nil)

	h := tr.Health()
	assert.Zero(t, h.ActivityCount)
	assert.Equal(t, start, h.LastActivity)

	_, _, _, _, warnings := tr.Stats()
	assert.Equal(t, 1, warnings)
}

func TestTrackerToolCallWindow(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, 3)

	for i := 0; i < 5; i++ {
		tr.Observe(start, domain.ToolCall{Timestamp: start, Raw: string(rune('a' + i))})
	}

	snap := tr.Snapshot()
	assert.Equal(t, 5, snap.ToolCallTotal)
	require.Len(t, snap.ToolCalls, 3)
	assert.Equal(t, "c", snap.ToolCalls[0].Raw)
	assert.Equal(t, "e", snap.ToolCalls[2].Raw)
}

func TestTrackerSnapshotIsCopy(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	tr := NewTracker(start, 0)
	tr.Observe(start, domain.Warning{Raw: "WARN one"})

	snap := tr.Snapshot()
	snap.Warnings[0].Raw = "mutated"

	assert.Equal(t, "WARN one", tr.Snapshot().Warnings[0].Raw)
}
