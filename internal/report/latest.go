package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LatestFile is the pointer to the most recent session's artifacts
const LatestFile = "latest.json"

// Latest points at the artifacts of the most recent session
type Latest struct {
	Type          string `json:"type"` // "latest_session"
	SchemaVersion int    `json:"schemaVersion"`
	SessionID     string `json:"session_id"`
	ExitCode      int    `json:"exit_code"`
	ExitReason    string `json:"exit_reason"`
	Summary       string `json:"summary"`
	Log           string `json:"log,omitempty"`
	JSON          string `json:"json"`
	Text          string `json:"text"`
	UpdatedAt     string `json:"updated_at"`
}

// NewLatest builds the pointer for a written report
func NewLatest(r *Report, p Paths, logPath string, now time.Time) *Latest {
	return &Latest{
		Type:          "latest_session",
		SchemaVersion: SchemaVersion,
		SessionID:     r.Session.ID,
		ExitCode:      r.Session.ExitCode,
		ExitReason:    r.Session.ExitReason,
		Summary:       r.Summary,
		Log:           logPath,
		JSON:          p.JSON,
		Text:          p.Text,
		UpdatedAt:     now.UTC().Format(time.RFC3339Nano),
	}
}

// LoadLatest reads the pointer from dir; a missing file yields nil, nil
func LoadLatest(dir string) (*Latest, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("reports dir is required")
	}
	b, err := os.ReadFile(filepath.Join(dir, LatestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var l Latest
	if err := json.Unmarshal(b, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// SaveLatest replaces the pointer atomically. Unlike the reports it is
// rewritten after every session.
func SaveLatest(dir string, l *Latest) error {
	if l == nil {
		return errors.New("latest pointer is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, ".latest-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, LatestFile))
}
