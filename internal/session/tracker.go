package session

import (
	"sync"
	"time"

	"github.com/milwrite/botwatch/internal/domain"
)

// DefaultToolCallWindow bounds how many recent tool calls are retained
const DefaultToolCallWindow = 100

// Tracker accumulates activity counters and classified events for one session
type Tracker struct {
	mu             sync.Mutex
	activityCount  int64
	lastActivity   time.Time
	mentions       []domain.Mention
	toolCalls      []domain.ToolCall
	toolCallTotal  int
	toolCallWindow int
	errors         []domain.ErrorEvent
	warnings       []domain.Warning
}

// Snapshot is a copy of everything the tracker has collected
type Snapshot struct {
	Health        domain.HealthSnapshot
	Mentions      []domain.Mention
	ToolCalls     []domain.ToolCall
	ToolCallTotal int
	Errors        []domain.ErrorEvent
	Warnings      []domain.Warning
}

// NewTracker creates a tracker whose last activity starts at start
func NewTracker(start time.Time, toolCallWindow int) *Tracker {
	if toolCallWindow <= 0 {
		toolCallWindow = DefaultToolCallWindow
	}
	return &Tracker{
		lastActivity:   start,
		toolCallWindow: toolCallWindow,
	}
}

// Observe records one line of child output. Every line counts as activity;
// ev, when non-nil, is additionally appended to its collection.
func (t *Tracker) Observe(ts time.Time, ev domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activityCount++
	t.lastActivity = ts
	if ev != nil {
		t.addEvent(ev)
	}
}

// Record appends a supervisor-generated event without counting it as child
// activity, so it never masks an apparent hang.
func (t *Tracker) Record(ev domain.Event) {
	if ev == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addEvent(ev)
}

func (t *Tracker) addEvent(ev domain.Event) {
	switch e := ev.(type) {
	case domain.Mention:
		t.mentions = append(t.mentions, e)
	case domain.ToolCall:
		t.toolCallTotal++
		t.toolCalls = append(t.toolCalls, e)
		if len(t.toolCalls) > t.toolCallWindow {
			t.toolCalls = t.toolCalls[len(t.toolCalls)-t.toolCallWindow:]
		}
	case domain.ErrorEvent:
		t.errors = append(t.errors, e)
	case domain.Warning:
		t.warnings = append(t.warnings, e)
	}
}

// Health returns the current activity snapshot
func (t *Tracker) Health() domain.HealthSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.HealthSnapshot{
		ActivityCount: t.activityCount,
		LastActivity:  t.lastActivity,
	}
}

// Snapshot returns copies of all collections
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Health: domain.HealthSnapshot{
			ActivityCount: t.activityCount,
			LastActivity:  t.lastActivity,
		},
		Mentions:      append([]domain.Mention(nil), t.mentions...),
		ToolCalls:     append([]domain.ToolCall(nil), t.toolCalls...),
		ToolCallTotal: t.toolCallTotal,
		Errors:        append([]domain.ErrorEvent(nil), t.errors...),
		Warnings:      append([]domain.Warning(nil), t.warnings...),
	}
}

// Stats returns the headline counters
func (t *Tracker) Stats() (activity int64, mentions, toolCalls, errors, warnings int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activityCount, len(t.mentions), t.toolCallTotal, len(t.errors), len(t.warnings)
}
