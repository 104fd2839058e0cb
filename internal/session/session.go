// Package session persists the caller-owned UI state: the pending file
// list, the last manifest path and a bounded history of completed runs.
// The engine only ever sees the reconstructed inputs.
package session

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// maxHistory bounds how many runs the history keeps.
const maxHistory = 100

// HistoryEntry summarizes one completed task run.
type HistoryEntry struct {
	Kind       string    `json:"kind"` // generate | verify | compare
	Inputs     []string  `json:"inputs"`
	Summary    string    `json:"summary"`
	OK         int       `json:"ok"`
	Mismatches int       `json:"mismatches"`
	Missing    int       `json:"missing"`
	DurationMs int64     `json:"duration_ms"`
	When       time.Time `json:"when"`
}

// Session is the serialized snapshot. Files and LastManifest are
// re-submittable to generation and verification unchanged.
type Session struct {
	Files        []string       `json:"files"`
	LastManifest string         `json:"last_manifest"`
	History      []HistoryEntry `json:"history"`
}

// Load reads the session file at path. A missing file yields an empty
// session, not an error.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return &Session{}, nil
		}
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the session to path.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// AddHistory appends a run, dropping the oldest entries past the cap.
func (s *Session) AddHistory(e HistoryEntry) {
	s.History = append(s.History, e)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// ClearHistory drops all recorded runs.
func (s *Session) ClearHistory() {
	s.History = nil
}
