package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/milwrite/botwatch/internal/report"
)

// ExitError carries a session's resolved exit code back to main
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("session ended: %s (exit %d)", e.Reason, e.Code)
}

// ErrorOutput is the JSON shape of a command failure
type ErrorOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// outputErrorCommon normalizes error emission across commands, respecting
// json vs text formats so scripts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	h := ""
	if len(hint) > 0 {
		h = hint[0]
	}
	if globals.JSON() {
		_ = json.NewEncoder(globals.Stdout).Encode(ErrorOutput{
			Type:          "error",
			SchemaVersion: report.SchemaVersion,
			Code:          code,
			Message:       message,
			Hint:          h,
		})
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, message)
		if h != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", h)
		}
		fmt.Fprintln(globals.Stderr)
	}
	return errors.New(message)
}
