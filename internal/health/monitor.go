package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/domain"
)

const (
	DefaultInterval      = 30 * time.Second
	DefaultHangThreshold = 300 * time.Second
)

// State is the advisory liveness state
type State int

const (
	StateNominal State = iota
	StateHanging
)

func (s State) String() string {
	if s == StateHanging {
		return "hanging"
	}
	return "nominal"
}

// Source provides the activity snapshot to inspect
type Source interface {
	Health() domain.HealthSnapshot
}

// ProcessStats is optional resource usage attached to heartbeats
type ProcessStats struct {
	RSSBytes   uint64
	CPUPercent float64
}

// Status is the outcome of a single health check
type Status struct {
	At            time.Time
	ActivityCount int64
	SinceActivity time.Duration
	State         State
	Stats         *ProcessStats
}

// Options configures a Monitor
type Options struct {
	Interval      time.Duration
	HangThreshold time.Duration
	Clock         clock.Clock
	Logger        *zap.Logger
	// Stats, when set, is sampled on every tick.
	Stats func() (ProcessStats, error)
	// OnTick is called after every check.
	OnTick func(Status)
	// OnPanic receives a recovered panic from a scheduled check; the
	// ticker stops afterwards.
	OnPanic func(any)
}

// Monitor periodically compares now against the last activity timestamp.
// It only logs; it never stops the child or the session.
type Monitor struct {
	source Source
	opts   Options

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor over source
func NewMonitor(source Source, opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.HangThreshold <= 0 {
		opts.HangThreshold = DefaultHangThreshold
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{source: source, opts: opts}
}

// Start runs the ticker until ctx is done or Stop is called
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	ticker := m.opts.Clock.Ticker(m.opts.Interval)
	go func() {
		defer close(m.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Stop may have raced the tick.
				if ctx.Err() != nil {
					return
				}
				if !m.tick() {
					return
				}
			}
		}
	}()
}

// tick runs one scheduled check and reports false if it panicked
func (m *Monitor) tick() (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			m.opts.Logger.Error(fmt.Sprintf("fatal: internal fault in health check: %v", rec), zap.Stack("stack"))
			if m.opts.OnPanic != nil {
				m.opts.OnPanic(rec)
			}
			ok = false
		}
	}()
	m.Check()
	return true
}

// Stop cancels the ticker and waits for the loop to exit. After Stop
// returns no further checks run.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// State returns the state computed by the last check
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Check performs one health evaluation
func (m *Monitor) Check() Status {
	snap := m.source.Health()
	now := m.opts.Clock.Now()
	gap := snap.Since(now)

	st := Status{
		At:            now,
		ActivityCount: snap.ActivityCount,
		SinceActivity: gap,
		State:         StateNominal,
	}

	fields := []zap.Field{
		zap.Int64("activity", snap.ActivityCount),
		zap.Duration("since_activity", gap.Truncate(time.Second)),
	}
	if m.opts.Stats != nil {
		if ps, err := m.opts.Stats(); err == nil {
			st.Stats = &ps
			fields = append(fields,
				zap.Uint64("rss_bytes", ps.RSSBytes),
				zap.Float64("cpu_percent", ps.CPUPercent),
			)
		} else {
			m.opts.Logger.Debug("process stats unavailable", zap.Error(err))
		}
	}
	m.opts.Logger.Info("health check", fields...)

	if gap > m.opts.HangThreshold {
		st.State = StateHanging
		m.opts.Logger.Warn(fmt.Sprintf("possible hang: no activity for %s", gap.Truncate(time.Second)))
	}

	m.mu.Lock()
	m.state = st.State
	m.mu.Unlock()

	if m.opts.OnTick != nil {
		m.opts.OnTick(st)
	}
	return st
}
