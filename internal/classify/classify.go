package classify

import (
	"regexp"
	"strings"
	"time"

	"github.com/milwrite/botwatch/internal/domain"
)

// Markers the bot prints around the events we care about
const (
	MentionMarker = "[MENTION DETECTED]"
	WarningGlyph  = "⚠"
)

// ToolMarkers are literal substrings that identify a tool invocation
var ToolMarkers = []string{"🔧", "[TOOL CALL]"}

// DefaultToolNames are the bot tools recognised as whole words
var DefaultToolNames = []string{
	"list_files",
	"read_file",
	"write_file",
	"edit_file",
	"search_files",
	"create_page",
	"commit_changes",
	"push_changes",
	"get_repo_status",
	"web_search",
	"set_mode",
}

var (
	mentionPattern = regexp.MustCompile(`(\S+) mentioned the bot in #(\S+)`)
	errorWords     = regexp.MustCompile(`(?i)\b(failed|failure|exception)\b`)
)

// Rule is one entry of the classification table. Match decides whether the
// rule claims the line; Build turns a claimed line into an event and may
// return nil, in which case the line counts as activity only.
type Rule struct {
	Name  string
	Kind  domain.EventKind
	Match func(line string) bool
	Build func(ts time.Time, line string) domain.Event
}

// Classifier evaluates its rules top-down; the first matching rule wins
type Classifier struct {
	rules []Rule
}

// New creates a classifier over an explicit rule table
func New(rules ...Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default returns the standard mention > tool call > error > warning table
func Default(toolNames []string) *Classifier {
	if len(toolNames) == 0 {
		toolNames = DefaultToolNames
	}
	return New(
		MentionRule(),
		ToolCallRule(toolNames),
		ErrorRule(),
		WarningRule(),
	)
}

// Rules returns a copy of the rule table
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the event for one line, or nil when the line is plain
// activity. Surrounding whitespace is ignored; blank lines never classify.
func (c *Classifier) Classify(ts time.Time, line string) domain.Event {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	for _, r := range c.rules {
		if r.Match(line) {
			return r.Build(ts, line)
		}
	}
	return nil
}

// MentionRule matches the mention marker and extracts user and channel
func MentionRule() Rule {
	return Rule{
		Name: "mention",
		Kind: domain.EventMention,
		Match: func(line string) bool {
			return strings.Contains(line, MentionMarker)
		},
		Build: func(ts time.Time, line string) domain.Event {
			m := mentionPattern.FindStringSubmatch(line)
			if len(m) != 3 {
				return nil
			}
			return domain.Mention{Timestamp: ts, User: m[1], Channel: m[2]}
		},
	}
}

// ToolCallRule matches tool markers or any of names as a whole word
func ToolCallRule(names []string) Rule {
	var namePattern *regexp.Regexp
	if len(names) > 0 {
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		namePattern = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return Rule{
		Name: "tool_call",
		Kind: domain.EventToolCall,
		Match: func(line string) bool {
			for _, m := range ToolMarkers {
				if strings.Contains(line, m) {
					return true
				}
			}
			return namePattern != nil && namePattern.MatchString(line)
		},
		Build: func(ts time.Time, line string) domain.Event {
			return domain.ToolCall{Timestamp: ts, Raw: line}
		},
	}
}

// ErrorRule matches error keywords and assigns a severity
func ErrorRule() Rule {
	return Rule{
		Name:  "error",
		Kind:  domain.EventError,
		Match: IsError,
		Build: func(ts time.Time, line string) domain.Event {
			return domain.ErrorEvent{Timestamp: ts, Raw: line, Severity: SeverityOf(line)}
		},
	}
}

// WarningRule matches warning keywords and the warning glyph
func WarningRule() Rule {
	return Rule{
		Name: "warning",
		Kind: domain.EventWarning,
		Match: func(line string) bool {
			return strings.Contains(line, "WARN") ||
				strings.Contains(line, "Warning") ||
				strings.Contains(line, WarningGlyph)
		},
		Build: func(ts time.Time, line string) domain.Event {
			return domain.Warning{Timestamp: ts, Raw: line}
		},
	}
}

// IsError reports whether a line contains an error keyword
func IsError(line string) bool {
	if strings.Contains(line, "ERROR") || strings.Contains(line, "Error:") {
		return true
	}
	if strings.Contains(strings.ToLower(line), "error") {
		return true
	}
	return errorWords.MatchString(line)
}

type severityRule struct {
	severity domain.Severity
	pattern  *regexp.Regexp
}

// Checked in order; only the first hit applies.
var severityRules = []severityRule{
	{domain.SeverityCritical, regexp.MustCompile(`(?i)\b(critical|fatal|crash)`)},
	{domain.SeverityAuth, regexp.MustCompile(`(?i)\b(authentication|token|permission)`)},
	{domain.SeverityNetwork, regexp.MustCompile(`(?i)\b(network|timeout|connection)`)},
	{domain.SeverityGit, regexp.MustCompile(`(?i)\b(git|push|commit)`)},
	{domain.SeverityDiscord, regexp.MustCompile(`(?i)\b(discord|api|rate[- ]?limit)`)},
}

// SeverityOf assigns the severity bucket of an error line
func SeverityOf(line string) domain.Severity {
	for _, r := range severityRules {
		if r.pattern.MatchString(line) {
			return r.severity
		}
	}
	return domain.SeverityGeneral
}
