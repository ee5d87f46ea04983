package domain

import "time"

// EventKind names a ClassifiedEvent variant
type EventKind string

const (
	EventMention  EventKind = "mention"
	EventToolCall EventKind = "tool_call"
	EventError    EventKind = "error"
	EventWarning  EventKind = "warning"
)

// Severity is the sub-classification of an error line
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityAuth     Severity = "auth"
	SeverityNetwork  Severity = "network"
	SeverityGit      Severity = "git"
	SeverityDiscord  Severity = "discord"
	SeverityGeneral  Severity = "general"
)

// Severities lists every severity in classification order
var Severities = []Severity{
	SeverityCritical,
	SeverityAuth,
	SeverityNetwork,
	SeverityGit,
	SeverityDiscord,
	SeverityGeneral,
}

// Event is a typed interpretation of one raw output line.
// Exactly one of Mention, ToolCall, ErrorEvent or Warning.
type Event interface {
	Kind() EventKind
	At() time.Time
}

// Mention is emitted when the bot reports being mentioned in a channel
type Mention struct {
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Channel   string    `json:"channel"`
}

// ToolCall is emitted when the bot invokes one of its tools
type ToolCall struct {
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw"`
}

// ErrorEvent is an error line together with its severity bucket
type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw"`
	Severity  Severity  `json:"severity"`
}

// Warning is a warning line
type Warning struct {
	Timestamp time.Time `json:"timestamp"`
	Raw       string    `json:"raw"`
}

func (Mention) Kind() EventKind    { return EventMention }
func (ToolCall) Kind() EventKind   { return EventToolCall }
func (ErrorEvent) Kind() EventKind { return EventError }
func (Warning) Kind() EventKind    { return EventWarning }

func (m Mention) At() time.Time    { return m.Timestamp }
func (t ToolCall) At() time.Time   { return t.Timestamp }
func (e ErrorEvent) At() time.Time { return e.Timestamp }
func (w Warning) At() time.Time    { return w.Timestamp }
