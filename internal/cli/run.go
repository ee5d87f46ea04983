package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/output"
	"github.com/milwrite/botwatch/internal/report"
	"github.com/milwrite/botwatch/internal/runner"
	"github.com/milwrite/botwatch/internal/supervisor"
)

// dashboardPortEnv is the variable the dashboard reads its port from
const dashboardPortEnv = "PORT"

// RunCmd supervises one bot session and writes its report
type RunCmd struct {
	GUIPort        int           `name:"gui-port" default:"${config_port}" help:"Dashboard port, exported to the bot and the dashboard"`
	BotCmd         string        `name:"bot-cmd" default:"${config_bot_cmd}" help:"Command that starts the bot"`
	DashboardCmd   string        `name:"dashboard-cmd" default:"${config_dashboard_cmd}" help:"Command that starts the dashboard"`
	NoDashboard    bool          `name:"no-dashboard" default:"${config_no_dashboard}" help:"Do not start the dashboard"`
	Dir            string        `type:"path" help:"Working directory for the bot and dashboard"`
	ReadyMarker    string        `default:"${config_ready_marker}" help:"Output text that marks the bot as ready"`
	PortEnv        string        `default:"${config_port_env}" help:"Environment variable the bot reads the dashboard port from"`
	StartupTimeout time.Duration `default:"${config_startup_timeout}" help:"How long to wait for the ready marker"`
	GracePeriod    time.Duration `default:"${config_grace_period}" help:"Time between SIGTERM and SIGKILL on shutdown"`
	HealthInterval time.Duration `default:"${config_health_interval}" help:"Health check interval"`
	HangThreshold  time.Duration `default:"${config_hang_threshold}" help:"Inactivity before a possible hang is reported"`
	LogsDir        string        `name:"logs-dir" default:"${config_logs_dir}" help:"Directory for raw session logs"`
	ReportsDir     string        `name:"reports-dir" default:"${config_reports_dir}" help:"Directory for session reports"`
	FlushThreshold int           `default:"${config_flush_threshold}" help:"Buffered lines before the session log is flushed"`
}

// SessionResult is the JSON summary printed when a run finishes
type SessionResult struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	ExitCode      int    `json:"exit_code"`
	ExitReason    string `json:"exit_reason"`
	Summary       string `json:"summary,omitempty"`
	Log           string `json:"log"`
	JSON          string `json:"json,omitempty"`
	Text          string `json:"text,omitempty"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	if err := validateFlags(globals, c); err != nil {
		return err
	}

	logger, err := newLogger(globals)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_LEVEL", err.Error(), "use debug, info, warn or error")
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	return c.run(ctx, globals, logger, sigs)
}

func (c *RunCmd) run(ctx context.Context, globals *Globals, logger *zap.Logger, sigs <-chan os.Signal) error {
	argv, err := supervisor.SplitCommand(c.BotCmd)
	if err != nil {
		return outputErrorCommon(globals, "INVALID_FLAGS", err.Error())
	}

	opts := runner.Options{
		LogDir:         c.LogsDir,
		ReportDir:      c.ReportsDir,
		FlushThreshold: c.FlushThreshold,
		ToolNames:      globals.Config.Classifier.ToolNames,
		StartupTimeout: c.StartupTimeout,
		HealthInterval: c.HealthInterval,
		HangThreshold:  c.HangThreshold,
		Port:           c.GUIPort,
		NewChild: func(sessionID string, l *zap.Logger) runner.Child {
			return supervisor.New(supervisor.Options{
				Command:        argv[0],
				Args:           argv[1:],
				Dir:            c.Dir,
				SessionID:      sessionID,
				PortEnv:        c.PortEnv,
				Port:           c.GUIPort,
				ReadyMarker:    c.ReadyMarker,
				StartupTimeout: c.StartupTimeout,
				GracePeriod:    c.GracePeriod,
				Stdin:          globals.Stdin,
				Logger:         l,
			})
		},
		Logger:  logger,
		Console: output.NewConsole(globals.Stdout, globals.Stderr, globals.Quiet || globals.JSON()),
	}
	if !c.NoDashboard {
		opts.StartAux = c.startDashboard
	}

	r := runner.New(opts)
	code, err := r.Run(ctx, sigs)
	res := r.Result()
	if res.SessionID == "" {
		if err == nil {
			return &ExitError{Code: code, Reason: "no-session"}
		}
		_ = outputErrorCommon(globals, "LAUNCH_FAILED", err.Error(), "check --bot-cmd and --dir")
		return &ExitError{Code: code, Reason: "launch-failed"}
	}
	if err != nil {
		logger.Debug("run finished with error", zap.Error(err))
	}

	if globals.JSON() {
		out := SessionResult{
			Type:          "session_result",
			SchemaVersion: report.SchemaVersion,
			SessionID:     res.SessionID,
			ExitCode:      res.ExitCode,
			ExitReason:    res.Reason,
			Log:           res.LogPath,
			JSON:          res.Paths.JSON,
			Text:          res.Paths.Text,
		}
		if res.Report != nil {
			out.Summary = res.Report.Summary
		}
		if encErr := json.NewEncoder(globals.Stdout).Encode(out); encErr != nil {
			return encErr
		}
	}

	if code != 0 {
		return &ExitError{Code: code, Reason: res.Reason}
	}
	return nil
}

func (c *RunCmd) startDashboard(sessionID string, l *zap.Logger) (runner.Stopper, error) {
	env := supervisor.BuildEnv(os.Environ(), sessionID, dashboardPortEnv, c.GUIPort)
	aux, err := supervisor.StartAuxiliary(c.DashboardCmd, supervisor.AuxOptions{
		Dir:         c.Dir,
		Env:         env,
		GracePeriod: c.GracePeriod,
		Logger:      l,
	})
	if err != nil {
		return nil, err
	}
	return aux, nil
}
