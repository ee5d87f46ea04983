package logbuf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another writer holds the session log
var ErrLocked = errors.New("session log is locked by another writer")

// FileSink appends to a session log file. It holds an exclusive advisory
// lock on the file for its lifetime.
type FileSink struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
	file *os.File
}

// OpenFile opens (creating if needed) path for appending and locks it
func OpenFile(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &FileSink{path: path, lock: lock, file: f}, nil
}

// Path returns the log file path
func (s *FileSink) Path() string { return s.path }

// Write appends p to the file
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return 0, os.ErrClosed
	}
	return s.file.Write(p)
}

// Close closes the file and releases the lock
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if uerr := s.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}
