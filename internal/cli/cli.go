package cli

import (
	"io"
	"os"

	"github.com/milwrite/botwatch/internal/config"
)

// Version information, set at build time
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the command tree parsed by kong
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"text,json" help:"Output format for command results (text or json)"`
	Level   string `short:"l" default:"${config_level}" enum:"debug,info,warn,error" help:"Minimum supervisor log level"`
	Quiet   bool   `short:"q" help:"Suppress informational console output"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Supervise the bot process (default command)"`
	Last    LastCmd    `cmd:"" help:"Show the most recent session report"`
	Config  ConfigCmd  `cmd:"" help:"Show or generate configuration"`
	Schema  SchemaCmd  `cmd:"" help:"Print JSON Schema for report documents"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// Globals holds the flags and streams shared by every command
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Stdin   io.Reader // forwarded to the bot; nil leaves its stdin idle
	Config  *config.Config
}

// NewGlobalsWithConfig merges parsed flags with config file fallbacks
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Globals{
		Format:  c.Format,
		Level:   c.Level,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Stdin:   os.Stdin,
		Config:  cfg,
	}
}

// JSON reports whether command output should be machine-readable
func (g *Globals) JSON() bool {
	return g != nil && g.Format == "json"
}
