package classify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milwrite/botwatch/internal/domain"
)

var ts = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestClassify_Mention(t *testing.T) {
	c := Default(nil)

	ev := c.Classify(ts, "🔔 [MENTION DETECTED] alice mentioned the bot in #general")
	require.NotNil(t, ev)
	m, ok := ev.(domain.Mention)
	require.True(t, ok)
	assert.Equal(t, "alice", m.User)
	assert.Equal(t, "general", m.Channel)
	assert.Equal(t, ts, m.Timestamp)
}

func TestClassify_MentionWithoutGroupsIsActivityOnly(t *testing.T) {
	c := Default(nil)

	// The marker claims the line even though the error rule would match too.
	assert.Nil(t, c.Classify(ts, "[MENTION DETECTED] but the Error: payload was malformed"))
}

func TestClassify_ToolCall(t *testing.T) {
	c := Default(nil)

	tests := []struct {
		name string
		line string
		want bool
	}{
		{"marker", "🔧 running something", true},
		{"bracket marker", "[TOOL CALL] anything", true},
		{"known tool word", "calling read_file on index.html", true},
		{"tool as substring", "unread_files pending", false},
		{"plain", "build step ok", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := c.Classify(ts, tt.line)
			if !tt.want {
				assert.Nil(t, ev)
				return
			}
			require.NotNil(t, ev)
			assert.Equal(t, domain.EventToolCall, ev.Kind())
			assert.Equal(t, tt.line, ev.(domain.ToolCall).Raw)
		})
	}
}

func TestClassify_CustomToolNames(t *testing.T) {
	c := Default([]string{"deploy.site"})

	require.NotNil(t, c.Classify(ts, "invoking deploy.site now"))
	assert.Nil(t, c.Classify(ts, "invoking deploy-site now"))
	assert.Nil(t, c.Classify(ts, "calling read_file"))
}

func TestClassify_ErrorSeverity(t *testing.T) {
	c := Default(nil)

	tests := []struct {
		line     string
		severity domain.Severity
	}{
		{"ERROR: invalid token", domain.SeverityAuth},
		{"Error: process crashed", domain.SeverityCritical},
		{"fatal error while booting", domain.SeverityCritical},
		{"Request failed: connection reset", domain.SeverityNetwork},
		{"error: timeout after 30s", domain.SeverityNetwork},
		{"git push failed", domain.SeverityGit},
		{"Exception in discord handler", domain.SeverityDiscord},
		{"api call failure", domain.SeverityDiscord},
		{"error: rate-limit hit", domain.SeverityDiscord},
		{"Something went wrong: error 42", domain.SeverityGeneral},
		{"permission denied error", domain.SeverityAuth},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ev := c.Classify(ts, tt.line)
			require.NotNil(t, ev)
			e, ok := ev.(domain.ErrorEvent)
			require.True(t, ok, "expected error event, got %T", ev)
			assert.Equal(t, tt.severity, e.Severity)
		})
	}
}

func TestClassify_ErrorWholeWords(t *testing.T) {
	assert.True(t, IsError("the job FAILED"))
	assert.True(t, IsError("unhandled exception"))
	assert.False(t, IsError("failedness is not a word"))
	assert.False(t, IsError("all good"))
}

func TestClassify_Warning(t *testing.T) {
	c := Default(nil)

	for _, line := range []string{"WARN slow response", "Warning: cache cold", "⚠️ low disk"} {
		ev := c.Classify(ts, line)
		require.NotNil(t, ev, line)
		assert.Equal(t, domain.EventWarning, ev.Kind())
	}
}

func TestClassify_ErrorBeatsWarning(t *testing.T) {
	c := Default(nil)

	ev := c.Classify(ts, "Warning: failed to refresh cache")
	require.NotNil(t, ev)
	assert.Equal(t, domain.EventError, ev.Kind())
}

func TestClassify_BlankAndPlain(t *testing.T) {
	c := Default(nil)

	assert.Nil(t, c.Classify(ts, ""))
	assert.Nil(t, c.Classify(ts, "   \t"))
	assert.Nil(t, c.Classify(ts, "build step ok"))
}

func TestClassify_TrimsBeforeMatching(t *testing.T) {
	c := Default(nil)

	ev := c.Classify(ts, "   WARN trailing   ")
	require.NotNil(t, ev)
	assert.Equal(t, "WARN trailing", ev.(domain.Warning).Raw)
}

func TestClassify_DeterministicAcrossOrder(t *testing.T) {
	c := Default(nil)
	lines := []string{
		"🔔 [MENTION DETECTED] bob mentioned the bot in #dev",
		"calling write_file",
		"ERROR: push rejected",
		"WARN retrying",
		"plain line",
	}

	first := make([]domain.Event, len(lines))
	for i, l := range lines {
		first[i] = c.Classify(ts, l)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		assert.Equal(t, first[i], c.Classify(ts, lines[i]))
	}
}

func TestClassifier_RulesOrderAndCopy(t *testing.T) {
	c := Default(nil)
	rules := c.Rules()

	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"mention", "tool_call", "error", "warning"}, names)

	rules[0] = Rule{}
	assert.Equal(t, "mention", c.Rules()[0].Name)
}

func TestClassifier_CustomRuleTable(t *testing.T) {
	deploy := Rule{
		Name:  "deploy",
		Kind:  domain.EventToolCall,
		Match: func(line string) bool { return strings.HasPrefix(line, "deploy:") },
		Build: func(ts time.Time, line string) domain.Event {
			return domain.ToolCall{Timestamp: ts, Raw: line}
		},
	}
	c := New(deploy, ErrorRule())

	assert.Equal(t, domain.EventToolCall, c.Classify(ts, "deploy: error page").Kind())
	assert.Equal(t, domain.EventError, c.Classify(ts, "error page").Kind())
	assert.Nil(t, c.Classify(ts, "WARN nobody handles me"))
}
