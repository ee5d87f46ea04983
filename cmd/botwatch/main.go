package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/alecthomas/kong"

	"github.com/milwrite/botwatch/internal/cli"
	"github.com/milwrite/botwatch/internal/config"
)

func main() {
	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win
	vars := kong.Vars{
		"config_format":          cfg.Format,
		"config_level":           cfg.Level,
		"config_port":            strconv.Itoa(cfg.Dashboard.Port),
		"config_bot_cmd":         cfg.Bot.Command,
		"config_dashboard_cmd":   cfg.Dashboard.Command,
		"config_no_dashboard":    strconv.FormatBool(!cfg.Dashboard.Enabled),
		"config_ready_marker":    cfg.Bot.ReadyMarker,
		"config_port_env":        cfg.Bot.PortEnv,
		"config_startup_timeout": cfg.Bot.StartupTimeout.String(),
		"config_grace_period":    cfg.Bot.GracePeriod.String(),
		"config_health_interval": cfg.Health.Interval.String(),
		"config_hang_threshold":  cfg.Health.HangThreshold.String(),
		"config_logs_dir":        cfg.Logs.Dir,
		"config_reports_dir":     cfg.Logs.ReportsDir,
		"config_flush_threshold": strconv.Itoa(cfg.Logs.FlushThreshold),
	}

	ctx := kong.Parse(&c,
		kong.Name("botwatch"),
		kong.Description("botwatch: supervise a chat bot process and write a report for every session"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
