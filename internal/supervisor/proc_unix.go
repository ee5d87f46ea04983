//go:build !windows

package supervisor

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// The child gets its own process group so a terminal Ctrl-C reaches only
// the supervisor, which then runs the escalation itself.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// groupSignaler signals the child's whole process group
type groupSignaler struct {
	p *os.Process
}

func (g groupSignaler) Signal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return g.p.Signal(sig)
	}
	if err := syscall.Kill(-g.p.Pid, s); err != nil {
		return g.p.Signal(sig)
	}
	return nil
}

func exitStatusOf(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := ws.Signal()
		return ExitStatus{Code: 128 + int(sig), Signal: unix.SignalName(sig)}
	}
	return ExitStatus{Code: state.ExitCode()}
}

// SignalName returns the conventional name of sig, e.g. SIGINT
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
