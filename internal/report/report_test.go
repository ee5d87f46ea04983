package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milwrite/botwatch/internal/domain"
	"github.com/milwrite/botwatch/internal/session"
)

var start = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func closedSession(d time.Duration, code int, reason string) *domain.Session {
	s := domain.NewSession(start)
	s.Close(start.Add(d), code, reason)
	return s
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{3 * time.Minute, "3m 0s"},
		{65 * time.Second, "1m 5s"},
		{time.Hour + 2*time.Minute + 5*time.Second, "1h 2m 5s"},
		{2*time.Hour + 5*time.Second, "2h 0m 5s"},
		{1500 * time.Millisecond, "1s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in), tt.in.String())
	}
}

func TestEventsPerMinute(t *testing.T) {
	assert.EqualValues(t, 0, EventsPerMinute(10, 0))
	assert.EqualValues(t, 10, EventsPerMinute(10, time.Minute))
	assert.EqualValues(t, 20, EventsPerMinute(10, 30*time.Second))
	assert.EqualValues(t, 3, EventsPerMinute(5, 2*time.Minute)) // 2.5 rounds up
}

func TestSummary(t *testing.T) {
	assert.Equal(t,
		"SUCCESS: Session ran for 1m 0s with 1 mention, 0 tool calls, and 0 errors.",
		Summary(0, domain.ReasonNormal, time.Minute, 1, 0, 0, 0))

	assert.Equal(t,
		"FAILURE: Session ran for 5s with 2 mentions, 1 tool call, and 3 errors (1 critical). Exit reason: SIGSEGV.",
		Summary(139, "SIGSEGV", 5*time.Second, 2, 1, 3, 1))
}

func TestGenerateScenarioA(t *testing.T) {
	tr := session.NewTracker(start, 0)
	tr.Observe(start.Add(time.Second), domain.Mention{Timestamp: start.Add(time.Second), User: "alice", Channel: "general"})
	tr.Observe(start.Add(2*time.Second), domain.ToolCall{Timestamp: start.Add(2 * time.Second), Raw: "🔧 read_file"})
	tr.Observe(start.Add(3*time.Second), domain.ErrorEvent{Timestamp: start.Add(3 * time.Second), Raw: "ERROR: network timeout", Severity: domain.SeverityNetwork})

	r := Generate(closedSession(time.Minute, 0, domain.ReasonNormal), tr.Snapshot())

	assert.Equal(t, "session_report", r.Type)
	assert.Equal(t, 1, r.Mentions.Total)
	assert.Equal(t, "alice", r.Mentions.List[0].User)
	assert.Equal(t, 1, r.ToolCalls.Total)
	assert.Equal(t, 1, r.Errors.Total)
	assert.Equal(t, 1, r.Errors.BySeverity[domain.SeverityNetwork])
	assert.Equal(t, 0, r.Errors.BySeverity[domain.SeverityCritical])
	assert.EqualValues(t, 3, r.Activity.TotalEvents)
	assert.EqualValues(t, 3, r.Activity.EventsPerMinute)
	assert.Equal(t, "1m 0s", r.Session.Duration)
	assert.EqualValues(t, 60000, r.Session.DurationMS)
	assert.True(t, strings.HasPrefix(r.Summary, "SUCCESS"))
	assert.NotContains(t, r.Summary, "Exit reason")
}

func TestGenerateScenarioB(t *testing.T) {
	tr := session.NewTracker(start, 0)
	r := Generate(closedSession(10*time.Second, 1, "1"), tr.Snapshot())

	assert.Equal(t, "1", r.Session.ExitReason)
	assert.Equal(t, 1, r.Session.ExitCode)
	assert.Contains(t, r.Summary, "FAILURE")
	assert.Contains(t, r.Summary, "Exit reason: 1.")
	assert.NotNil(t, r.Mentions.List)
	assert.NotNil(t, r.Errors.List)
}

func TestGenerateCapsToolCallsOnly(t *testing.T) {
	tr := session.NewTracker(start, 0)
	for i := 0; i < 30; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		tr.Observe(ts, domain.ToolCall{Timestamp: ts, Raw: fmt.Sprintf("call %d", i)})
		tr.Observe(ts, domain.Warning{Timestamp: ts, Raw: fmt.Sprintf("WARN %d", i)})
	}

	r := Generate(closedSession(time.Minute, 0, domain.ReasonNormal), tr.Snapshot())

	assert.Equal(t, 30, r.ToolCalls.Total)
	require.Len(t, r.ToolCalls.Recent, RecentToolCalls)
	assert.Equal(t, "call 10", r.ToolCalls.Recent[0].Raw)
	assert.Equal(t, "call 29", r.ToolCalls.Recent[RecentToolCalls-1].Raw)
	assert.Len(t, r.Warnings.List, 30)
}

func TestWriteCreatesBothArtifactsOnce(t *testing.T) {
	dir := t.TempDir()
	tr := session.NewTracker(start, 0)
	for i := 0; i < 8; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		tr.Observe(ts, domain.Warning{Timestamp: ts, Raw: fmt.Sprintf("WARN %d", i)})
	}
	tr.Observe(start, domain.ErrorEvent{Timestamp: start, Raw: "fatal crash", Severity: domain.SeverityCritical})
	r := Generate(closedSession(90*time.Second, 1, "1"), tr.Snapshot())

	p, err := Write(dir, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, r.Session.ID+".json"), p.JSON)
	assert.Equal(t, filepath.Join(dir, r.Session.ID+".txt"), p.Text)

	b, err := os.ReadFile(p.JSON)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "session_report", decoded["type"])
	assert.Contains(t, decoded, "tool_calls")

	txt, err := os.ReadFile(p.Text)
	require.NoError(t, err)
	text := string(txt)
	assert.Contains(t, text, "SESSION DETAILS")
	assert.Contains(t, text, "WARNINGS (8)")
	assert.Contains(t, text, "showing last 5 of 8")
	assert.Contains(t, text, "critical")
	assert.Contains(t, text, r.Summary)

	_, err = Write(dir, r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	after, err := os.ReadFile(p.JSON)
	require.NoError(t, err)
	assert.Equal(t, b, after)
}

func TestLatestPointer(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Nil(t, got)

	r := Generate(closedSession(time.Second, 0, domain.ReasonNormal), session.NewTracker(start, 0).Snapshot())
	l := NewLatest(r, PathsFor(dir, r.Session.ID), "/tmp/x.log", start)
	require.NoError(t, SaveLatest(dir, l))
	require.NoError(t, SaveLatest(dir, l))

	got, err = LoadLatest(dir)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}
