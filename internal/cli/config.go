package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/milwrite/botwatch/internal/config"
	"github.com/milwrite/botwatch/internal/report"
)

// ConfigCmd groups the configuration subcommands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which configuration file is used"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample configuration file"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}

	if globals.JSON() {
		return json.NewEncoder(globals.Stdout).Encode(map[string]interface{}{
			"type":          "config",
			"schemaVersion": report.SchemaVersion,
			"path":          config.ConfigFile(),
			"config":        cfg,
			"defaults":      config.Default(),
		})
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	if path := config.ConfigFile(); path != "" {
		fmt.Fprintf(globals.Stdout, "# loaded from %s\n", path)
	}
	fmt.Fprintln(globals.Stdout)
	_, err = globals.Stdout.Write(b)
	return err
}

// ConfigPathCmd prints the configuration file in use
type ConfigPathCmd struct{}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()

	if globals.JSON() {
		return json.NewEncoder(globals.Stdout).Encode(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": report.SchemaVersion,
			"path":          path,
			"found":         path != "",
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout)
		fmt.Fprintln(globals.Stdout, "Searched:")
		fmt.Fprintln(globals.Stdout, "  ./.botwatch.yaml, ./.botwatch.yml")
		fmt.Fprintln(globals.Stdout, "  ~/.botwatch.yaml, ~/.botwatch.yml")
		fmt.Fprintln(globals.Stdout, "  /etc/botwatch/botwatch.yaml")
		fmt.Fprintln(globals.Stdout, "  <user config dir>/botwatch/botwatch.yaml")
		fmt.Fprintln(globals.Stdout, "  ./botwatch.yaml")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints or writes a sample configuration
type ConfigGenerateCmd struct {
	Output string `short:"o" type:"path" help:"Write to this file instead of stdout"`
	Force  bool   `help:"Overwrite an existing output file"`
}

const configHeader = `# botwatch configuration file
# Place at ./.botwatch.yaml, ~/.botwatch.yaml or /etc/botwatch/botwatch.yaml.
# Every key can also be set through BOTWATCH_<SECTION>_<KEY>, for example
# BOTWATCH_BOT_STARTUP_TIMEOUT=45s.

`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	b, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	content := append([]byte(configHeader), b...)

	if c.Output == "" {
		_, err = globals.Stdout.Write(content)
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if c.Force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(c.Output, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return outputErrorCommon(globals, "FILE_EXISTS", c.Output+" already exists", "pass --force to overwrite")
		}
		return outputErrorCommon(globals, "WRITE_FAILED", err.Error())
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return outputErrorCommon(globals, "WRITE_FAILED", err.Error())
	}
	if err := f.Close(); err != nil {
		return err
	}
	if !globals.Quiet {
		fmt.Fprintf(globals.Stderr, "Wrote %s\n", c.Output)
	}
	return nil
}
