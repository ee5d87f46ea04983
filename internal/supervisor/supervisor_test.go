//go:build !windows

package supervisor

import (
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milwrite/botwatch/internal/domain"
)

func drain(t *testing.T, s *Supervisor) []domain.LogLine {
	t.Helper()
	var out []domain.LogLine
	timeout := time.After(10 * time.Second)
	for {
		select {
		case l, ok := <-s.Lines():
			if !ok {
				return out
			}
			out = append(out, l)
		case <-timeout:
			t.Fatal("timed out draining child output")
		}
	}
}

func discard(s *Supervisor) {
	for range s.Lines() {
	}
}

func TestLaunchCapturesBothStreamsAndExitCode(t *testing.T) {
	script := `echo "boot"; echo "Bot is ready" >&2; echo "SESSION=$SESSION_ID PORT=$GUI_PORT"; exit 3`
	s := New(Options{
		Command:     "sh",
		Args:        []string{"-c", script},
		SessionID:   "session-test",
		Port:        4123,
		ReadyMarker: DefaultReadyMarker,
	})
	require.NoError(t, s.Launch(context.Background()))
	require.NotZero(t, s.PID())

	lines := drain(t, s)
	<-s.Exited()

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	assert.Contains(t, texts, "boot")
	assert.Contains(t, texts, "SESSION=session-test PORT=4123")

	var sawReadyOnErr bool
	for _, l := range lines {
		if l.Text == "Bot is ready" && l.Stream == domain.StreamErr {
			sawReadyOnErr = true
		}
	}
	assert.True(t, sawReadyOnErr)

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready marker on stderr should resolve startup")
	}

	st := s.ExitStatus()
	assert.Equal(t, 3, st.Code)
	assert.Equal(t, "3", st.Reason())
	assert.False(t, s.Running())
}

func TestLaunchForwardsStdin(t *testing.T) {
	s := New(Options{
		Command: "sh",
		Args:    []string{"-c", `read line; echo "got: $line"`},
		Stdin:   strings.NewReader("hello bot\n"),
	})
	require.NoError(t, s.Launch(context.Background()))

	lines := drain(t, s)
	<-s.Exited()
	require.Len(t, lines, 1)
	assert.Equal(t, "got: hello bot", lines[0].Text)
	assert.False(t, s.ExitStatus().Crashed())
}

func TestLaunchSplitsOverlongLines(t *testing.T) {
	script := `head -c 2000000 /dev/zero | tr '\0' x; echo; echo after; exit 0`
	s := New(Options{Command: "sh", Args: []string{"-c", script}})
	require.NoError(t, s.Launch(context.Background()))

	lines := drain(t, s)
	select {
	case <-s.Exited():
	case <-time.After(10 * time.Second):
		t.Fatal("child blocked writing after an overlong line")
	}

	require.GreaterOrEqual(t, len(lines), 3)
	total := 0
	for _, l := range lines[:len(lines)-1] {
		assert.LessOrEqual(t, len(l.Text), MaxLineBytes+64*1024)
		total += len(l.Text)
	}
	assert.Equal(t, 2000000, total)
	assert.Equal(t, "after", lines[len(lines)-1].Text)
	assert.Equal(t, 0, s.ExitStatus().Code)
}

func TestLaunchKeepsBlankLinesAndStripsCR(t *testing.T) {
	s := New(Options{Command: "sh", Args: []string{"-c", `printf 'one\r\n\ntail'`}})
	require.NoError(t, s.Launch(context.Background()))

	lines := drain(t, s)
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text
	}
	assert.Equal(t, []string{"one", "", "tail"}, texts)
}

func TestExitDetectedWhileBackgroundProcessHoldsOutput(t *testing.T) {
	s := New(Options{Command: "sh", Args: []string{"-c", `echo started; sleep 20 & exit 3`}})
	require.NoError(t, s.Launch(context.Background()))
	pid := s.PID()
	t.Cleanup(func() { _ = syscall.Kill(-pid, syscall.SIGKILL) })

	select {
	case <-s.Exited():
	case <-time.After(3 * time.Second):
		t.Fatal("exit not detected while a background process holds stdout")
	}
	assert.Equal(t, 3, s.ExitStatus().Code)
	assert.True(t, s.ExitStatus().Crashed())

	lines := drain(t, s)
	require.NotEmpty(t, lines)
	assert.Equal(t, "started", lines[0].Text)
}

func TestLaunchMissingExecutable(t *testing.T) {
	s := New(Options{Command: "/nonexistent/bot-binary"})
	err := s.Launch(context.Background())
	require.Error(t, err)
	assert.Zero(t, s.PID())

	_, err = s.Terminate(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestTerminateGracefulChild(t *testing.T) {
	s := New(Options{
		Command:     "sh",
		Args:        []string{"-c", `echo "Bot is ready"; exec sleep 30`},
		ReadyMarker: DefaultReadyMarker,
		GracePeriod: 5 * time.Second,
	})
	require.NoError(t, s.Launch(context.Background()))
	go discard(s)
	require.NoError(t, s.AwaitReady(context.Background()))

	forced, err := s.Terminate(context.Background())
	require.NoError(t, err)
	assert.False(t, forced)
	<-s.Exited()
	assert.Equal(t, "SIGTERM", s.ExitStatus().Signal)
}

func TestTerminateEscalatesToKill(t *testing.T) {
	s := New(Options{
		Command:     "sh",
		Args:        []string{"-c", `trap '' TERM; echo "Bot is ready"; exec sleep 30`},
		ReadyMarker: DefaultReadyMarker,
		GracePeriod: 200 * time.Millisecond,
	})
	require.NoError(t, s.Launch(context.Background()))
	go discard(s)
	require.NoError(t, s.AwaitReady(context.Background()))

	forced, err := s.Terminate(context.Background())
	require.NoError(t, err)
	assert.True(t, forced)
	assert.Equal(t, "SIGKILL", s.ExitStatus().Signal)
	assert.Equal(t, 137, s.ExitStatus().Code)
}

func TestStatsForRunningChild(t *testing.T) {
	s := New(Options{Command: "sh", Args: []string{"-c", "exec sleep 30"}})
	require.NoError(t, s.Launch(context.Background()))
	go discard(s)
	defer s.Terminate(context.Background())

	st, err := s.Stats()
	require.NoError(t, err)
	assert.NotZero(t, st.RSSBytes)
}

func TestAuxiliaryStartAndStop(t *testing.T) {
	a, err := StartAuxiliary("sleep 30", AuxOptions{GracePeriod: time.Second})
	require.NoError(t, err)
	require.True(t, a.Running())

	require.NoError(t, a.Stop(context.Background()))
	assert.False(t, a.Running())

	_, err = StartAuxiliary("/nonexistent/dashboard", AuxOptions{})
	assert.Error(t, err)

	var nilAux *Auxiliary
	assert.NoError(t, nilAux.Stop(context.Background()))
}
