package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/milwrite/botwatch/internal/domain"
	"github.com/milwrite/botwatch/internal/session"
)

const (
	SchemaVersion = 1

	// RecentToolCalls caps the tool-call list even in the JSON artifact
	RecentToolCalls = 20
)

// Report is the structured post-mortem of one session
type Report struct {
	Type          string       `json:"type"` // "session_report"
	SchemaVersion int          `json:"schemaVersion"`
	Session       SessionInfo  `json:"session"`
	Activity      ActivityInfo `json:"activity"`
	Mentions      MentionInfo  `json:"mentions"`
	ToolCalls     ToolCallInfo `json:"tool_calls"`
	Errors        ErrorInfo    `json:"errors"`
	Warnings      WarningInfo  `json:"warnings"`
	Summary       string       `json:"summary"`
}

type SessionInfo struct {
	ID         string    `json:"id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Duration   string    `json:"duration"`
	DurationMS int64     `json:"duration_ms"`
	ExitCode   int       `json:"exit_code"`
	ExitReason string    `json:"exit_reason"`
}

type ActivityInfo struct {
	TotalEvents     int64     `json:"total_events"`
	EventsPerMinute int64     `json:"events_per_minute"`
	LastActivity    time.Time `json:"last_activity"`
}

type MentionInfo struct {
	Total int              `json:"total"`
	List  []domain.Mention `json:"list"`
}

type ToolCallInfo struct {
	Total  int               `json:"total"`
	Recent []domain.ToolCall `json:"recent"`
}

type ErrorInfo struct {
	Total      int                     `json:"total"`
	BySeverity map[domain.Severity]int `json:"by_severity"`
	List       []domain.ErrorEvent     `json:"list"`
}

type WarningInfo struct {
	Total int              `json:"total"`
	List  []domain.Warning `json:"list"`
}

// Generate builds the report for a closed session. It has no side effects.
func Generate(s *domain.Session, snap session.Snapshot) *Report {
	code, reason := s.Exit()
	dur := s.Duration()

	hist := make(map[domain.Severity]int, len(domain.Severities))
	for _, sev := range domain.Severities {
		hist[sev] = 0
	}
	for sev, n := range lo.CountValuesBy(snap.Errors, func(e domain.ErrorEvent) domain.Severity { return e.Severity }) {
		hist[sev] = n
	}
	critical := hist[domain.SeverityCritical]

	return &Report{
		Type:          "session_report",
		SchemaVersion: SchemaVersion,
		Session: SessionInfo{
			ID:         s.ID(),
			Start:      s.Start(),
			End:        s.End(),
			Duration:   FormatDuration(dur),
			DurationMS: dur.Milliseconds(),
			ExitCode:   code,
			ExitReason: reason,
		},
		Activity: ActivityInfo{
			TotalEvents:     snap.Health.ActivityCount,
			EventsPerMinute: EventsPerMinute(snap.Health.ActivityCount, dur),
			LastActivity:    snap.Health.LastActivity,
		},
		Mentions: MentionInfo{
			Total: len(snap.Mentions),
			List:  nonNil(snap.Mentions),
		},
		ToolCalls: ToolCallInfo{
			Total:  snap.ToolCallTotal,
			Recent: nonNil(last(snap.ToolCalls, RecentToolCalls)),
		},
		Errors: ErrorInfo{
			Total:      len(snap.Errors),
			BySeverity: hist,
			List:       nonNil(snap.Errors),
		},
		Warnings: WarningInfo{
			Total: len(snap.Warnings),
			List:  nonNil(snap.Warnings),
		},
		Summary: Summary(code, reason, dur, len(snap.Mentions), snap.ToolCallTotal, len(snap.Errors), critical),
	}
}

// FormatDuration renders d largest unit first, dropping leading zero units:
// 1h 2m 5s, 3m 0s, 42s.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60

	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, sec)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, sec)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

// EventsPerMinute is activity / (duration in minutes), rounded; zero for an
// empty duration.
func EventsPerMinute(activity int64, d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int64(math.Round(float64(activity) / (float64(ms) / 60000)))
}

// Summary is the one-sentence verdict of a session
func Summary(code int, reason string, d time.Duration, mentions, toolCalls, errs, critical int) string {
	status := "SUCCESS"
	if code != 0 {
		status = "FAILURE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: Session ran for %s with %s, %s, and %s",
		status, FormatDuration(d),
		plural(mentions, "mention"), plural(toolCalls, "tool call"), plural(errs, "error"))
	if critical > 0 {
		fmt.Fprintf(&b, " (%d critical)", critical)
	}
	b.WriteString(".")
	if code != 0 && reason != "" {
		fmt.Fprintf(&b, " Exit reason: %s.", reason)
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func last[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return lo.Subset(xs, -n, uint(n))
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
