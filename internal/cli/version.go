package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/milwrite/botwatch/internal/report"
)

// VersionCmd shows build information
type VersionCmd struct{}

// VersionOutput represents the JSON output of the version command
type VersionOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	GoVersion     string `json:"go_version"`
	GoInstall     string `json:"go_install"`
}

const goInstallCmd = "go install github.com/milwrite/botwatch/cmd/botwatch@latest"

// Run executes the version command
func (c *VersionCmd) Run(globals *Globals) error {
	if globals.JSON() {
		return json.NewEncoder(globals.Stdout).Encode(VersionOutput{
			Type:          "version",
			SchemaVersion: report.SchemaVersion,
			Version:       Version,
			Commit:        Commit,
			GoVersion:     runtime.Version(),
			GoInstall:     goInstallCmd,
		})
	}

	fmt.Fprintf(globals.Stdout, "botwatch %s (%s, %s)\n", Version, Commit, runtime.Version())
	fmt.Fprintln(globals.Stdout)
	fmt.Fprintln(globals.Stdout, "To upgrade via Go:")
	fmt.Fprintf(globals.Stdout, "  %s\n", goInstallCmd)
	return nil
}
