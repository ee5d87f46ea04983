package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

var (
	// ErrStartupTimeout is returned when the ready marker never shows up
	ErrStartupTimeout = errors.New("ready marker not observed before startup timeout")
	// ErrExitedBeforeReady is returned when the child dies during startup
	ErrExitedBeforeReady = errors.New("child exited before becoming ready")
)

// Signaler delivers a signal to a running process (or process group)
type Signaler interface {
	Signal(sig os.Signal) error
}

// Escalate terminates a process in two steps: SIGTERM, then SIGKILL if it
// has not exited when grace runs out. exited must close when the process
// has been reaped. forced reports whether SIGKILL was sent.
func Escalate(ctx context.Context, clk clock.Clock, p Signaler, exited <-chan struct{}, grace time.Duration, logger *zap.Logger) (forced bool, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	select {
	case <-exited:
		return false, nil
	default:
	}

	// Armed before signalling so a fast exit always finds a timer to cancel.
	timer := clk.Timer(grace)
	defer timer.Stop()

	if err := p.Signal(syscall.SIGTERM); err != nil {
		select {
		case <-exited:
			logger.Debug("SIGTERM after exit", zap.Error(err))
			return false, nil
		default:
		}
		logger.Debug("SIGTERM failed, escalating immediately", zap.Error(err))
	} else {
		select {
		case <-exited:
			return false, nil
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	// Exit and expiry can land together; exit wins.
	select {
	case <-exited:
		return false, nil
	default:
	}

	logger.Warn(fmt.Sprintf("child still running after %s grace period, sending SIGKILL", grace))
	if err := p.Signal(syscall.SIGKILL); err != nil {
		select {
		case <-exited:
			logger.Debug("SIGKILL after exit", zap.Error(err))
			return false, nil
		default:
		}
		return true, fmt.Errorf("send SIGKILL: %w", err)
	}

	reap := clk.Timer(grace)
	defer reap.Stop()
	select {
	case <-exited:
		return true, nil
	case <-reap.C:
		return true, errors.New("child did not exit after SIGKILL")
	}
}

// WaitReady blocks until ready closes, the timeout elapses, or the child
// exits first
func WaitReady(ctx context.Context, clk clock.Clock, ready, exited <-chan struct{}, timeout time.Duration) error {
	timer := clk.Timer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-timer.C:
		// A marker that arrived together with expiry still counts.
		select {
		case <-ready:
			return nil
		default:
		}
		return ErrStartupTimeout
	case <-exited:
		select {
		case <-ready:
			return nil
		default:
		}
		return ErrExitedBeforeReady
	case <-ctx.Done():
		return ctx.Err()
	}
}
