package cli

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"

	"github.com/milwrite/botwatch/internal/domain"
)

// schemaTypes lists the documents SchemaCmd knows, in output order
var schemaTypes = []string{"session_report", "latest_session", "session_result", "error"}

// SchemaCmd outputs JSON Schema for botwatch documents
type SchemaCmd struct {
	Type []string `short:"t" help:"Document types to include (session_report,latest_session,session_result,error). Default: all"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	schemas := map[string]interface{}{
		"session_report": sessionReportSchema(),
		"latest_session": latestSessionSchema(),
		"session_result": sessionResultSchema(),
		"error":          errorSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	defs := map[string]interface{}{}
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	output := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "botwatch Output Schemas",
		"description": "JSON Schema definitions for botwatch reports and command output",
		"definitions": defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func timeProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time", "description": description}
}

func constProp(value string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "const": value}
}

func listOf(item map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": item}
}

func eventItem(title string, extra map[string]interface{}) map[string]interface{} {
	props := map[string]interface{}{
		"timestamp": timeProp("When the line was captured"),
		"raw":       prop("string", "The captured line"),
	}
	for k, v := range extra {
		props[k] = v
	}
	return map[string]interface{}{
		"type":       "object",
		"title":      title,
		"properties": props,
	}
}

func sessionReportSchema() map[string]interface{} {
	severities := lo.Map(domain.Severities, func(s domain.Severity, _ int) string { return string(s) })

	return map[string]interface{}{
		"type":        "object",
		"title":       "Session Report",
		"description": "Post-mortem of one supervised bot session",
		"required":    []string{"type", "schemaVersion", "session", "activity", "mentions", "tool_calls", "errors", "warnings", "summary"},
		"properties": map[string]interface{}{
			"type":          constProp("session_report"),
			"schemaVersion": prop("integer", "Schema version of this document"),
			"session": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":          prop("string", "Session identifier derived from the start time"),
					"start":       timeProp("Session start"),
					"end":         timeProp("Session end"),
					"duration":    prop("string", "Human readable duration such as 1h 2m 5s"),
					"duration_ms": prop("integer", "Duration in milliseconds"),
					"exit_code":   prop("integer", "Process exit code the supervisor resolved"),
					"exit_reason": prop("string", "normal, a signal name, a child exit code, startup-timeout or internal-fault"),
				},
			},
			"activity": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total_events":      prop("integer", "Lines observed on stdout and stderr"),
					"events_per_minute": prop("integer", "Rounded activity rate"),
					"last_activity":     timeProp("Time of the most recent line"),
				},
			},
			"mentions": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total": prop("integer", "Mentions detected"),
					"list": listOf(map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"timestamp": timeProp("When the mention was captured"),
							"user":      prop("string", "User who mentioned the bot"),
							"channel":   prop("string", "Channel without the leading #"),
						},
					}),
				},
			},
			"tool_calls": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total":  prop("integer", "Tool calls detected"),
					"recent": listOf(eventItem("Tool Call", nil)),
				},
			},
			"errors": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total": prop("integer", "Errors detected"),
					"by_severity": map[string]interface{}{
						"type":                 "object",
						"description":          "Error count per severity, every severity present",
						"propertyNames":        map[string]interface{}{"enum": severities},
						"additionalProperties": map[string]interface{}{"type": "integer"},
					},
					"list": listOf(eventItem("Error", map[string]interface{}{
						"severity": map[string]interface{}{"type": "string", "enum": severities},
					})),
				},
			},
			"warnings": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"total": prop("integer", "Warnings detected"),
					"list":  listOf(eventItem("Warning", nil)),
				},
			},
			"summary": prop("string", "One line summary of the session"),
		},
	}
}

func latestSessionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Latest Session",
		"description": "Pointer to the artifacts of the most recent session",
		"required":    []string{"type", "schemaVersion", "session_id", "json", "text"},
		"properties": map[string]interface{}{
			"type":          constProp("latest_session"),
			"schemaVersion": prop("integer", "Schema version of this document"),
			"session_id":    prop("string", "Session identifier"),
			"exit_code":     prop("integer", "Resolved exit code"),
			"exit_reason":   prop("string", "Resolved exit reason"),
			"summary":       prop("string", "Report summary line"),
			"log":           prop("string", "Path of the raw session log"),
			"json":          prop("string", "Path of the JSON report"),
			"text":          prop("string", "Path of the text report"),
			"updated_at":    timeProp("When the pointer was written"),
		},
	}
}

func sessionResultSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Session Result",
		"description": "Printed by 'botwatch run --format json' when a session ends",
		"required":    []string{"type", "schemaVersion", "session_id", "exit_code", "exit_reason"},
		"properties": map[string]interface{}{
			"type":          constProp("session_result"),
			"schemaVersion": prop("integer", "Schema version of this document"),
			"session_id":    prop("string", "Session identifier"),
			"exit_code":     prop("integer", "Resolved exit code"),
			"exit_reason":   prop("string", "Resolved exit reason"),
			"summary":       prop("string", "Report summary line"),
			"log":           prop("string", "Path of the raw session log"),
			"json":          prop("string", "Path of the JSON report"),
			"text":          prop("string", "Path of the text report"),
		},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "A command failure in json format",
		"required":    []string{"type", "code", "message"},
		"properties": map[string]interface{}{
			"type":          constProp("error"),
			"schemaVersion": prop("integer", "Schema version of this document"),
			"code":          prop("string", "Machine-readable error code such as INVALID_FLAGS"),
			"message":       prop("string", "Human readable message"),
			"hint":          prop("string", "Suggested fix"),
		},
	}
}
