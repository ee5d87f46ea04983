package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/classify"
	"github.com/milwrite/botwatch/internal/domain"
	"github.com/milwrite/botwatch/internal/health"
	"github.com/milwrite/botwatch/internal/logbuf"
	"github.com/milwrite/botwatch/internal/output"
	"github.com/milwrite/botwatch/internal/report"
	"github.com/milwrite/botwatch/internal/session"
	"github.com/milwrite/botwatch/internal/shutdown"
	"github.com/milwrite/botwatch/internal/supervisor"
)

// drainTimeout bounds how long shutdown waits for buffered output to be
// classified before writing the report
const drainTimeout = 5 * time.Second

// Child is the supervised bot process
type Child interface {
	Launch(ctx context.Context) error
	Lines() <-chan domain.LogLine
	Ready() <-chan struct{}
	Exited() <-chan struct{}
	ExitStatus() supervisor.ExitStatus
	Terminate(ctx context.Context) (forced bool, err error)
	PID() int
	Stats() (supervisor.Stats, error)
}

// Stopper is a best-effort side process
type Stopper interface {
	Stop(ctx context.Context) error
}

// Options configures a Runner
type Options struct {
	LogDir         string
	ReportDir      string
	FlushThreshold int
	ToolNames      []string
	StartupTimeout time.Duration
	HealthInterval time.Duration
	HangThreshold  time.Duration
	Port           int

	// NewChild builds the bot process for a session.
	NewChild func(sessionID string, logger *zap.Logger) Child
	// StartAux starts the dashboard; nil disables it.
	StartAux func(sessionID string, logger *zap.Logger) (Stopper, error)

	Clock   clock.Clock
	Logger  *zap.Logger
	Console *output.Console
}

// Result describes a finished run
type Result struct {
	SessionID string
	ExitCode  int
	Reason    string
	Report    *report.Report
	Paths     report.Paths
	LogPath   string
}

// Runner owns everything that lives for one session: the child, the
// collections, the log buffer, the timers and the shutdown guard.
type Runner struct {
	opts    Options
	clock   clock.Clock
	console *output.Console

	mu     sync.Mutex
	result Result
}

// New creates a runner; nothing starts until Run
func New(opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Console == nil {
		opts.Console = output.NewConsole(io.Discard, io.Discard, true)
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = supervisor.DefaultStartupTimeout
	}
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = logbuf.DefaultThreshold
	}
	if len(opts.ToolNames) == 0 {
		opts.ToolNames = classify.DefaultToolNames
	}
	return &Runner{opts: opts, clock: opts.Clock, console: opts.Console}
}

// Result is valid once Run has returned
func (r *Runner) Result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// run holds the per-session state shared by the goroutines of one Run
type run struct {
	*Runner
	logger     *zap.Logger
	sess       *domain.Session
	tracker    *session.Tracker
	buf        *logbuf.Writer
	logPath    string
	classifier *classify.Classifier
	child      Child
	aux        Stopper
	monitor    *health.Monitor

	stopWatchdog context.CancelFunc
	timedOut     chan struct{}
	faults       chan string
	drained      chan struct{}
}

// Run supervises one session until a shutdown trigger fires and returns the
// resolved exit code. A launch failure returns 1 and an error; no report is
// written for a session that never started.
func (r *Runner) Run(ctx context.Context, sigs <-chan os.Signal) (code int, err error) {
	start := r.clock.Now()
	sess := domain.NewSession(start)
	tracker := session.NewTracker(start, session.DefaultToolCallWindow)
	logger := withRecorder(r.opts.Logger, tracker, r.clock).With(zap.String("session_id", sess.ID()))

	sink, err := logbuf.OpenFile(filepath.Join(r.opts.LogDir, sess.ID()+".log"))
	if err != nil {
		return 1, fmt.Errorf("open session log: %w", err)
	}

	rn := &run{
		Runner:     r,
		logger:     logger,
		sess:       sess,
		tracker:    tracker,
		buf:        logbuf.New(sink, r.opts.FlushThreshold, logger),
		logPath:    sink.Path(),
		classifier: classify.Default(r.opts.ToolNames),
		child:      r.opts.NewChild(sess.ID(), logger),
		timedOut:   make(chan struct{}, 1),
		faults:     make(chan string, 1),
		drained:    make(chan struct{}),
	}

	if err := rn.child.Launch(ctx); err != nil {
		logger.Error(fmt.Sprintf("fatal: failed to launch bot: %v", err))
		_ = rn.buf.Close()
		return 1, fmt.Errorf("launch bot: %w", err)
	}

	r.console.Banner("Bot Supervisor",
		"Session: "+sess.ID(),
		fmt.Sprintf("PID: %d | Port: %d", rn.child.PID(), r.opts.Port),
		"Started: "+start.Format("2006-01-02 15:04:05"),
		"Log: "+rn.logPath,
	)

	coord := shutdown.New(logger,
		shutdown.Step{Name: "stop-timers", Run: rn.stopTimers},
		shutdown.Step{Name: "flush-log", Run: func(context.Context, shutdown.Trigger) error { return rn.buf.Flush() }},
		shutdown.Step{Name: "terminate-bot", Run: rn.terminateChild},
		shutdown.Step{Name: "stop-dashboard", Run: rn.stopAux},
		shutdown.Step{Name: "final-flush", Run: rn.finalFlush},
		shutdown.Step{Name: "write-report", Run: rn.writeReport},
	)
	bg := context.WithoutCancel(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(fmt.Sprintf("fatal: internal fault: %v", rec), zap.Stack("stack"))
			coord.Shutdown(bg, shutdown.Fault(domain.ReasonPanic))
			code, err = coord.ExitCode(), fmt.Errorf("internal fault: %v", rec)
			return
		}
		if coord.Unplanned(bg) {
			code = coord.ExitCode()
		}
	}()

	rn.startAux()
	go rn.dispatch()
	rn.startHealth(ctx)
	rn.startWatchdog(ctx)

	coord.Shutdown(bg, rn.awaitTrigger(ctx, sigs))
	return coord.ExitCode(), nil
}

func (rn *run) awaitTrigger(ctx context.Context, sigs <-chan os.Signal) shutdown.Trigger {
	select {
	case sig := <-sigs:
		name := supervisor.SignalName(sig)
		rn.logger.Info("received signal", zap.String("signal", name))
		return shutdown.Signal(name)

	case <-rn.child.Exited():
		st := rn.child.ExitStatus()
		if st.Crashed() {
			rn.logger.Error(fmt.Sprintf("fatal: bot process crashed (exit %s)", st.Reason()),
				zap.Int("code", st.Code), zap.String("signal", st.Signal))
			return shutdown.Crash(st.Reason(), st.Code)
		}
		rn.logger.Info("bot process exited cleanly")
		return shutdown.Normal()

	case <-rn.timedOut:
		return shutdown.StartupTimeout()

	case kind := <-rn.faults:
		return shutdown.Fault(kind)

	case <-ctx.Done():
		rn.logger.Info("context canceled", zap.Error(ctx.Err()))
		return shutdown.Signal("canceled")
	}
}

// dispatch is the single consumer of child output; arrival order is
// classification order.
func (rn *run) dispatch() {
	defer close(rn.drained)
	for l := range rn.child.Lines() {
		rn.handleLine(l)
	}
}

func (rn *run) handleLine(l domain.LogLine) {
	defer func() {
		if rec := recover(); rec != nil {
			rn.logger.Error(fmt.Sprintf("fatal: internal fault handling output: %v", rec), zap.Stack("stack"))
			select {
			case rn.faults <- domain.ReasonInternalFault:
			default:
			}
		}
	}()

	rn.buf.Append(l)
	rn.console.Line(l)
	rn.tracker.Observe(l.Timestamp, rn.classifier.Classify(l.Timestamp, l.Text))
}

func (rn *run) startAux() {
	if rn.opts.StartAux == nil {
		return
	}
	aux, err := rn.opts.StartAux(rn.sess.ID(), rn.logger)
	if err != nil {
		rn.logger.Info("dashboard not started", zap.Error(err))
		return
	}
	rn.aux = aux
	rn.logger.Info("dashboard started", zap.Int("port", rn.opts.Port))
}

func (rn *run) startWatchdog(ctx context.Context) {
	wctx, cancel := context.WithCancel(ctx)
	rn.stopWatchdog = cancel
	timeout := rn.opts.StartupTimeout

	go func() {
		err := supervisor.WaitReady(wctx, rn.clock, rn.child.Ready(), rn.child.Exited(), timeout)
		switch {
		case err == nil:
			rn.logger.Info("bot is ready")
			rn.console.Info("✓ bot is ready")
		case errors.Is(err, supervisor.ErrStartupTimeout):
			rn.logger.Error(fmt.Sprintf("fatal: bot did not become ready within %s", timeout))
			select {
			case rn.timedOut <- struct{}{}:
			default:
			}
		}
	}()
}

func (rn *run) startHealth(ctx context.Context) {
	rn.monitor = health.NewMonitor(rn.tracker, health.Options{
		Interval:      rn.opts.HealthInterval,
		HangThreshold: rn.opts.HangThreshold,
		Clock:         rn.clock,
		Logger:        rn.logger,
		Stats: func() (health.ProcessStats, error) {
			st, err := rn.child.Stats()
			return health.ProcessStats{RSSBytes: st.RSSBytes, CPUPercent: st.CPUPercent}, err
		},
		OnTick: func(st health.Status) {
			_, mentions, tools, errs, warns := rn.tracker.Stats()
			msg := fmt.Sprintf("health: %d events, last activity %s ago, %d mentions, %d tool calls, %d errors, %d warnings",
				st.ActivityCount, st.SinceActivity.Truncate(time.Second), mentions, tools, errs, warns)
			if st.State == health.StateHanging {
				rn.console.Warn("%s (possible hang)", msg)
				return
			}
			rn.console.Info("%s", msg)
		},
		OnPanic: func(any) {
			select {
			case rn.faults <- domain.ReasonInternalFault:
			default:
			}
		},
	})
	rn.monitor.Start(ctx)
}

func (rn *run) stopTimers(_ context.Context, t shutdown.Trigger) error {
	rn.console.Banner("Shutting down", "Reason: "+t.Reason)
	rn.stopWatchdog()
	rn.monitor.Stop()
	return nil
}

func (rn *run) terminateChild(ctx context.Context, _ shutdown.Trigger) error {
	forced, err := rn.child.Terminate(ctx)
	if errors.Is(err, supervisor.ErrNotStarted) {
		return nil
	}
	if forced {
		rn.logger.Warn("bot process was killed after the grace period")
	}
	return err
}

func (rn *run) stopAux(ctx context.Context, _ shutdown.Trigger) error {
	if rn.aux == nil {
		return nil
	}
	return rn.aux.Stop(ctx)
}

// finalFlush waits for trailing output to be dispatched, then flushes and
// releases the session log
func (rn *run) finalFlush(context.Context, shutdown.Trigger) error {
	select {
	case <-rn.drained:
	case <-rn.clock.After(drainTimeout):
		rn.logger.Warn(fmt.Sprintf("output still draining after %s, writing report anyway", drainTimeout))
	}
	return rn.buf.Close()
}

func (rn *run) writeReport(_ context.Context, t shutdown.Trigger) error {
	now := rn.clock.Now()
	rn.sess.Close(now, t.Code, t.Reason)

	rep := report.Generate(rn.sess, rn.tracker.Snapshot())
	paths, err := report.Write(rn.opts.ReportDir, rep)

	rn.mu.Lock()
	rn.result = Result{
		SessionID: rn.sess.ID(),
		ExitCode:  t.Code,
		Reason:    t.Reason,
		Report:    rep,
		Paths:     paths,
		LogPath:   rn.logPath,
	}
	rn.mu.Unlock()

	if err != nil {
		return err
	}
	rn.logger.Info("session report written", zap.String("json", paths.JSON), zap.String("text", paths.Text))
	if err := report.SaveLatest(rn.opts.ReportDir, report.NewLatest(rep, paths, rn.logPath, now)); err != nil {
		rn.logger.Warn(fmt.Sprintf("could not update %s: %v", report.LatestFile, err))
	}

	rn.console.Banner("Session complete",
		rep.Summary,
		"Report: "+paths.Text,
		"JSON:   "+paths.JSON,
	)
	return nil
}
