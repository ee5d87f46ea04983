package domain

import (
	"fmt"
	"strings"
	"time"
)

// Stream identifies which child pipe a line was read from
type Stream string

const (
	StreamOut Stream = "out"
	StreamErr Stream = "err"
)

// Tag returns the upper-case stream tag used in the raw log
func (s Stream) Tag() string {
	return strings.ToUpper(string(s))
}

// LogLine is one captured line of child output
type LogLine struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    Stream    `json:"stream"`
	Text      string    `json:"text"`
}

// Format renders the line for the raw session log:
// <ISO-8601 timestamp> [<STREAM>] <original line>
func (l LogLine) Format() string {
	return fmt.Sprintf("%s [%s] %s", l.Timestamp.UTC().Format(time.RFC3339Nano), l.Stream.Tag(), l.Text)
}
