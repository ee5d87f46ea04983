package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/milwrite/botwatch/internal/domain"
)

const (
	DefaultStartupTimeout = 30 * time.Second
	DefaultGracePeriod    = 5 * time.Second
	DefaultReadyMarker    = "Bot is ready"
	DefaultPortEnv        = "GUI_PORT"
	DefaultPort           = 3001

	lineBuffer = 256
)

var (
	// MaxLineBytes caps one captured line; longer output arrives in pieces
	MaxLineBytes = 1024 * 1024
	// StreamDrainDelay bounds how long output is read after the child is
	// reaped while something else still holds the pipes open
	StreamDrainDelay = 2 * time.Second
)

// ErrNotStarted is returned by operations that need a launched child
var ErrNotStarted = errors.New("child process not started")

// Options configures the supervised child
type Options struct {
	Command        string
	Args           []string
	Dir            string
	Env            []string // base environment, os.Environ() when nil
	SessionID      string
	PortEnv        string
	Port           int
	ReadyMarker    string
	StartupTimeout time.Duration
	GracePeriod    time.Duration
	Stdin          io.Reader
	Clock          clock.Clock
	Logger         *zap.Logger
}

// ExitStatus describes how the child ended
type ExitStatus struct {
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// Crashed reports a non-zero exit or a death by signal
func (e ExitStatus) Crashed() bool {
	return e.Code != 0 || e.Signal != ""
}

// Reason is the signal name when killed by a signal, else the exit code
func (e ExitStatus) Reason() string {
	if e.Signal != "" {
		return e.Signal
	}
	return strconv.Itoa(e.Code)
}

// Stats is a point-in-time resource sample of the child
type Stats struct {
	RSSBytes   uint64
	CPUPercent float64
}

// Supervisor owns the child bot process. Nothing else signals it.
type Supervisor struct {
	opts   Options
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	status ExitStatus

	lines     chan domain.LogLine
	ready     chan struct{}
	readyOnce sync.Once
	exited    chan struct{}
}

// New creates a supervisor; nothing runs until Launch
func New(opts Options) *Supervisor {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.PortEnv == "" {
		opts.PortEnv = DefaultPortEnv
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Supervisor{
		opts:   opts,
		clock:  opts.Clock,
		logger: opts.Logger,
		lines:  make(chan domain.LogLine, lineBuffer),
		ready:  make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// BuildEnv returns base plus the session id and port variables
func BuildEnv(base []string, sessionID, portEnv string, port int) []string {
	env := make([]string, 0, len(base)+2)
	env = append(env, base...)
	env = append(env, "SESSION_ID="+sessionID)
	if portEnv != "" {
		env = append(env, portEnv+"="+strconv.Itoa(port))
	}
	return env
}

// Launch starts the child with all three standard streams piped
func (s *Supervisor) Launch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("child already launched")
	}

	base := s.opts.Env
	if base == nil {
		base = os.Environ()
	}

	cmd := exec.Command(s.opts.Command, s.opts.Args...)
	cmd.Dir = s.opts.Dir
	cmd.Env = BuildEnv(base, s.opts.SessionID, s.opts.PortEnv, s.opts.Port)
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	// Plain pipes instead of StdoutPipe: Wait must not block on output
	// held open by a process the bot left behind.
	outR, outW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll(outR, outW)
		return fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		closeAll(outR, outW, errR, errW)
		return fmt.Errorf("start %s: %w", s.opts.Command, err)
	}
	closeAll(outW, errW)
	s.cmd = cmd
	s.logger.Info("bot process started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("command", strings.Join(append([]string{s.opts.Command}, s.opts.Args...), " ")),
		zap.String("session_id", s.opts.SessionID),
	)

	if s.opts.Stdin != nil {
		go func() {
			// Ends when the child closes its stdin or our input hits EOF.
			_, _ = io.Copy(stdin, s.opts.Stdin)
			_ = stdin.Close()
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go s.capture(outR, domain.StreamOut, &wg)
	go s.capture(errR, domain.StreamErr, &wg)

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(s.lines)
		close(drained)
	}()

	go func() {
		_ = cmd.Wait()

		s.mu.Lock()
		s.status = exitStatusOf(cmd.ProcessState)
		status := s.status
		s.mu.Unlock()

		s.logger.Debug("bot process reaped", zap.Int("code", status.Code), zap.String("signal", status.Signal))
		close(s.exited)

		select {
		case <-drained:
		case <-s.clock.After(StreamDrainDelay):
			s.logger.Debug("output still open after exit, closing streams", zap.Duration("after", StreamDrainDelay))
			closeAll(outR, errR)
		}
	}()

	return nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// capture reads r to EOF. Lines longer than MaxLineBytes are delivered in
// pieces so the pipe never stops draining.
func (s *Supervisor) capture(r io.ReadCloser, stream domain.Stream, wg *sync.WaitGroup) {
	defer wg.Done()
	defer r.Close()

	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(line) >= MaxLineBytes {
				s.emit(stream, line)
				line = line[:0]
			}
			continue
		}
		if err == nil || len(line) > 0 {
			s.emit(stream, trimEOL(line))
			line = line[:0]
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				s.logger.Debug("stream read ended", zap.String("stream", string(stream)), zap.Error(err))
				_, _ = io.Copy(io.Discard, r)
			}
			return
		}
	}
}

func (s *Supervisor) emit(stream domain.Stream, b []byte) {
	text := string(b)
	if s.opts.ReadyMarker != "" && strings.Contains(text, s.opts.ReadyMarker) {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	s.lines <- domain.LogLine{Timestamp: s.clock.Now(), Stream: stream, Text: text}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// Lines delivers captured lines in arrival order; closed once both
// streams reach EOF
func (s *Supervisor) Lines() <-chan domain.LogLine { return s.lines }

// Ready closes when the ready marker is first seen on either stream
func (s *Supervisor) Ready() <-chan struct{} { return s.ready }

// Exited closes after the child has been reaped
func (s *Supervisor) Exited() <-chan struct{} { return s.exited }

// ExitStatus is valid once Exited is closed
func (s *Supervisor) ExitStatus() ExitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// PID returns the child pid, or 0 before launch
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Running reports whether the child was launched and has not exited
func (s *Supervisor) Running() bool {
	if s.PID() == 0 {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// AwaitReady runs the startup watchdog
func (s *Supervisor) AwaitReady(ctx context.Context) error {
	return WaitReady(ctx, s.clock, s.ready, s.exited, s.opts.StartupTimeout)
}

// Terminate stops the child via the SIGTERM/SIGKILL escalation
func (s *Supervisor) Terminate(ctx context.Context) (bool, error) {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return false, ErrNotStarted
	}
	return Escalate(ctx, s.clock, groupSignaler{p: cmd.Process}, s.exited, s.opts.GracePeriod, s.logger)
}

// Stats samples the child's resident memory and CPU usage
func (s *Supervisor) Stats() (Stats, error) {
	pid := s.PID()
	if pid == 0 || !s.Running() {
		return Stats{}, ErrNotStarted
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return Stats{}, fmt.Errorf("inspect pid %d: %w", pid, err)
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Stats{}, fmt.Errorf("memory info: %w", err)
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return Stats{}, fmt.Errorf("cpu percent: %w", err)
	}
	return Stats{RSSBytes: mem.RSS, CPUPercent: cpu}, nil
}
