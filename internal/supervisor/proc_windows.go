//go:build windows

package supervisor

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// On Windows only Kill is reliably supported.
type groupSignaler struct {
	p *os.Process
}

func (g groupSignaler) Signal(os.Signal) error {
	return g.p.Kill()
}

func exitStatusOf(state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{Code: -1}
	}
	return ExitStatus{Code: state.ExitCode()}
}

// SignalName returns the name of sig
func SignalName(sig os.Signal) string {
	return sig.String()
}
