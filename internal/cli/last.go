package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/milwrite/botwatch/internal/report"
)

// LastCmd prints the pointer to the most recent session's artifacts
type LastCmd struct {
	ReportsDir string `name:"reports-dir" default:"${config_reports_dir}" help:"Directory holding session reports"`
	Show       bool   `help:"Print the full text report instead of the pointer"`
}

// Run executes the last command
func (c *LastCmd) Run(globals *Globals) error {
	latest, err := report.LoadLatest(c.ReportsDir)
	if err != nil {
		return outputErrorCommon(globals, "LATEST_UNREADABLE", err.Error(), "remove "+report.LatestFile+" and rerun the bot")
	}
	if latest == nil {
		return outputErrorCommon(globals, "NO_SESSION", "no session report found in "+c.ReportsDir, "run 'botwatch run' first or pass --reports-dir")
	}

	if c.Show {
		f, err := os.Open(latest.Text)
		if err != nil {
			return outputErrorCommon(globals, "REPORT_MISSING", err.Error())
		}
		defer f.Close()
		_, err = io.Copy(globals.Stdout, f)
		return err
	}

	if globals.JSON() {
		return json.NewEncoder(globals.Stdout).Encode(latest)
	}

	fmt.Fprintf(globals.Stdout, "Session:  %s\n", latest.SessionID)
	fmt.Fprintf(globals.Stdout, "Exit:     %d (%s)\n", latest.ExitCode, latest.ExitReason)
	fmt.Fprintf(globals.Stdout, "Summary:  %s\n", latest.Summary)
	if latest.Log != "" {
		fmt.Fprintf(globals.Stdout, "Log:      %s\n", latest.Log)
	}
	fmt.Fprintf(globals.Stdout, "Report:   %s\n", latest.Text)
	fmt.Fprintf(globals.Stdout, "JSON:     %s\n", latest.JSON)
	fmt.Fprintf(globals.Stdout, "Updated:  %s\n", latest.UpdatedAt)
	return nil
}
