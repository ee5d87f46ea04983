package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

// Auxiliary is a best-effort side process such as the dashboard. Its
// output is discarded and its failure never affects the session.
type Auxiliary struct {
	cmd    *exec.Cmd
	exited chan struct{}
	clock  clock.Clock
	grace  time.Duration
	logger *zap.Logger
}

// AuxOptions configures StartAuxiliary
type AuxOptions struct {
	Dir         string
	Env         []string
	GracePeriod time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
}

// SplitCommand splits a shell-style command line into argv
func SplitCommand(command string) ([]string, error) {
	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}
	return argv, nil
}

// StartAuxiliary launches command. The caller should log a returned error
// at info level and carry on.
func StartAuxiliary(command string, opts AuxOptions) (*Auxiliary, error) {
	argv, err := SplitCommand(command)
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.SysProcAttr = sysProcAttr()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start auxiliary %s: %w", argv[0], err)
	}

	a := &Auxiliary{
		cmd:    cmd,
		exited: make(chan struct{}),
		clock:  opts.Clock,
		grace:  opts.GracePeriod,
		logger: opts.Logger,
	}
	go func() {
		err := cmd.Wait()
		a.logger.Debug("auxiliary process exited", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
		close(a.exited)
	}()
	return a, nil
}

// PID returns the auxiliary pid
func (a *Auxiliary) PID() int { return a.cmd.Process.Pid }

// Running reports whether the process has not exited yet
func (a *Auxiliary) Running() bool {
	select {
	case <-a.exited:
		return false
	default:
		return true
	}
}

// Stop terminates the process with the same escalation as the bot
func (a *Auxiliary) Stop(ctx context.Context) error {
	if a == nil {
		return nil
	}
	_, err := Escalate(ctx, a.clock, groupSignaler{p: a.cmd.Process}, a.exited, a.grace, a.logger)
	return err
}
