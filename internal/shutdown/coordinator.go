package shutdown

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/domain"
)

// State of the coordinator
type State int32

const (
	StateRunning State = iota
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Trigger is why a shutdown started and the exit code it resolves to
type Trigger struct {
	Reason string
	Code   int
}

// Signal is a deliberate OS-signal shutdown (exit 0)
func Signal(name string) Trigger { return Trigger{Reason: name, Code: 0} }

// Normal is a clean child exit (exit 0)
func Normal() Trigger { return Trigger{Reason: domain.ReasonNormal, Code: 0} }

// Crash propagates the child's exit code; reason is its code or signal name
func Crash(reason string, code int) Trigger { return Trigger{Reason: reason, Code: code} }

// Fault is an internal supervisor failure (exit 1)
func Fault(kind string) Trigger { return Trigger{Reason: kind, Code: 1} }

// StartupTimeout is the watchdog expiry (exit 1)
func StartupTimeout() Trigger { return Trigger{Reason: domain.ReasonStartupTimeout, Code: 1} }

// Unexpected is the last-resort trigger when the run ends without shutdown
func Unexpected() Trigger { return Trigger{Reason: domain.ReasonUnexpectedExit, Code: 1} }

// Step is one named action in the shutdown sequence
type Step struct {
	Name string
	Run  func(ctx context.Context, t Trigger) error
}

// Coordinator runs the shutdown sequence exactly once no matter how many
// triggers fire or from where.
type Coordinator struct {
	state  atomic.Int32
	steps  []Step
	logger *zap.Logger

	mu      sync.Mutex
	trigger Trigger
	err     error
	done    chan struct{}
}

// New creates a coordinator that will run steps in order
func New(logger *zap.Logger, steps ...Step) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		steps:  steps,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// State returns the current state
func (c *Coordinator) State() State { return State(c.state.Load()) }

// Done closes once the sequence has finished
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Trigger returns the trigger that won, valid after Done
func (c *Coordinator) Trigger() Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trigger
}

// ExitCode is the resolved process exit code, valid after Done
func (c *Coordinator) ExitCode() int { return c.Trigger().Code }

// Err combines every step failure, valid after Done
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Shutdown runs the sequence for t. Only the first call does anything and
// it blocks until the sequence completes; later calls return false at once.
func (c *Coordinator) Shutdown(ctx context.Context, t Trigger) bool {
	if !c.state.CompareAndSwap(int32(StateRunning), int32(StateShuttingDown)) {
		c.logger.Debug("shutdown already in progress", zap.String("ignored_reason", t.Reason))
		return false
	}

	c.mu.Lock()
	c.trigger = t
	c.mu.Unlock()
	c.logger.Info("shutting down", zap.String("reason", t.Reason), zap.Int("exit_code", t.Code))

	var errs error
	for _, s := range c.steps {
		if err := c.runStep(ctx, s, t); err != nil {
			c.logger.Error(fmt.Sprintf("shutdown step %s failed: %v", s.Name, err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	c.mu.Lock()
	c.err = errs
	c.mu.Unlock()
	c.state.Store(int32(StateTerminated))
	close(c.done)
	return true
}

// A panicking step must not stop the remaining ones.
func (c *Coordinator) runStep(ctx context.Context, s Step, t Trigger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Run(ctx, t)
}

// Unplanned is the last resort for a run that ends without ever reaching
// ShuttingDown. It is a no-op once any shutdown has started.
func (c *Coordinator) Unplanned(ctx context.Context) bool {
	if c.State() != StateRunning {
		return false
	}
	c.logger.Warn("run ended without a shutdown, writing unplanned report")
	return c.Shutdown(ctx, Unexpected())
}
