package domain

import (
	"strings"
	"sync"
	"time"
)

// Exit reasons that are not a child exit code or signal name
const (
	ReasonNormal         = "normal"
	ReasonStartupTimeout = "startup-timeout"
	ReasonUnexpectedExit = "unexpected-exit"
	ReasonInternalFault  = "internal-fault"
	ReasonPanic          = "panic"
)

// Session is one supervised run of the bot, bounded by start and end
type Session struct {
	mu         sync.Mutex
	id         string
	start      time.Time
	end        time.Time
	exitCode   int
	exitReason string
	closed     bool
}

// NewSession creates the session for a run starting at start
func NewSession(start time.Time) *Session {
	return &Session{
		id:    NewSessionID(start),
		start: start,
	}
}

// NewSessionID derives a filesystem-safe identifier from a start time,
// e.g. session-2026-10-17T09-30-00-000Z
func NewSessionID(start time.Time) string {
	ts := start.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "session-" + ts
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Start returns the session start time
func (s *Session) Start() time.Time { return s.start }

// Close records the end of the session. Only the first call has any
// effect; later calls return false and leave the session untouched.
func (s *Session) Close(end time.Time, code int, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.end = end
	s.exitCode = code
	s.exitReason = reason
	return true
}

// Closed reports whether Close has been called
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// End returns the end time, zero until the session is closed
func (s *Session) End() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end
}

// Exit returns the exit code and reason recorded by Close
func (s *Session) Exit() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.exitReason
}

// Duration is end-start, or zero while the session is open
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return 0
	}
	return s.end.Sub(s.start)
}
