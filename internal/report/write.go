package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/samber/lo"

	"github.com/milwrite/botwatch/internal/domain"
)

// Caps for the human-readable lists
const (
	TextMentions  = 10
	TextToolCalls = 10
	TextErrors    = 20
	TextWarnings  = 5
)

// Paths are the artifacts written for one session
type Paths struct {
	JSON string `json:"json"`
	Text string `json:"text"`
}

// PathsFor names the artifacts of a session deterministically
func PathsFor(dir, sessionID string) Paths {
	return Paths{
		JSON: filepath.Join(dir, sessionID+".json"),
		Text: filepath.Join(dir, sessionID+".txt"),
	}
}

// Write persists both artifacts. Files are created exclusively, so a report
// that already exists is never rewritten and a second Write fails.
func Write(dir string, r *Report) (Paths, error) {
	if r == nil {
		return Paths{}, fmt.Errorf("report is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create reports dir: %w", err)
	}
	p := PathsFor(dir, r.Session.ID)

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encode report: %w", err)
	}
	b = append(b, '\n')
	if err := writeExclusive(p.JSON, b); err != nil {
		return Paths{}, err
	}

	var text strings.Builder
	if err := RenderText(&text, r); err != nil {
		return Paths{}, fmt.Errorf("render text report: %w", err)
	}
	if err := writeExclusive(p.Text, []byte(text.String())); err != nil {
		return Paths{}, err
	}
	return p, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// RenderText writes the human-readable report
func RenderText(w io.Writer, r *Report) error {
	ts := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format(time.RFC3339)
	}

	title(w, "BOT SESSION REPORT", "=")
	fmt.Fprintln(w)

	title(w, "SESSION DETAILS", "-")
	fmt.Fprintf(w, "Session ID:   %s\n", r.Session.ID)
	fmt.Fprintf(w, "Started:      %s\n", ts(r.Session.Start))
	fmt.Fprintf(w, "Ended:        %s\n", ts(r.Session.End))
	fmt.Fprintf(w, "Duration:     %s\n", r.Session.Duration)
	fmt.Fprintf(w, "Exit code:    %d\n", r.Session.ExitCode)
	fmt.Fprintf(w, "Exit reason:  %s\n", r.Session.ExitReason)
	fmt.Fprintln(w)

	title(w, "ACTIVITY SUMMARY", "-")
	fmt.Fprintf(w, "Total events:       %d\n", r.Activity.TotalEvents)
	fmt.Fprintf(w, "Events per minute:  %d\n", r.Activity.EventsPerMinute)
	fmt.Fprintf(w, "Last activity:      %s\n", ts(r.Activity.LastActivity))
	fmt.Fprintln(w)

	title(w, fmt.Sprintf("MENTIONS (%d)", r.Mentions.Total), "-")
	section(w, r.Mentions.List, TextMentions, r.Mentions.Total, func(m domain.Mention) string {
		return fmt.Sprintf("[%s] %s in #%s", ts(m.Timestamp), m.User, m.Channel)
	})

	title(w, fmt.Sprintf("TOOL CALLS (%d)", r.ToolCalls.Total), "-")
	section(w, r.ToolCalls.Recent, TextToolCalls, r.ToolCalls.Total, func(c domain.ToolCall) string {
		return fmt.Sprintf("[%s] %s", ts(c.Timestamp), c.Raw)
	})

	title(w, fmt.Sprintf("ERRORS (%d)", r.Errors.Total), "-")
	if r.Errors.Total > 0 {
		if err := severityTable(w, r.Errors.BySeverity); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	section(w, r.Errors.List, TextErrors, r.Errors.Total, func(e domain.ErrorEvent) string {
		return fmt.Sprintf("[%s] [%s] %s", ts(e.Timestamp), e.Severity, e.Raw)
	})

	title(w, fmt.Sprintf("WARNINGS (%d)", r.Warnings.Total), "-")
	section(w, r.Warnings.List, TextWarnings, r.Warnings.Total, func(wn domain.Warning) string {
		return fmt.Sprintf("[%s] %s", ts(wn.Timestamp), wn.Raw)
	})

	title(w, "SUMMARY", "-")
	_, err := fmt.Fprintln(w, r.Summary)
	return err
}

func title(w io.Writer, s, rule string) {
	fmt.Fprintln(w, s)
	fmt.Fprintln(w, strings.Repeat(rule, len(s)))
}

// section prints the last limit items of xs, noting how many were elided
func section[T any](w io.Writer, xs []T, limit, total int, line func(T) string) {
	if len(xs) == 0 {
		fmt.Fprintln(w, "(none)")
		fmt.Fprintln(w)
		return
	}
	shown := last(xs, limit)
	for _, x := range shown {
		fmt.Fprintf(w, "  %s\n", line(x))
	}
	if total > len(shown) {
		fmt.Fprintf(w, "  ... showing last %d of %d\n", len(shown), total)
	}
	fmt.Fprintln(w)
}

func severityTable(w io.Writer, hist map[domain.Severity]int) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "  ", Right: "  "}),
	)
	table.Header([]string{"SEVERITY", "COUNT"})
	present := lo.Filter(domain.Severities, func(s domain.Severity, _ int) bool { return hist[s] > 0 })
	for _, sev := range present {
		if err := table.Append([]string{string(sev), fmt.Sprintf("%d", hist[sev])}); err != nil {
			return err
		}
	}
	return table.Render()
}
