package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// QuietTrigger represents what triggered a quiet mode change.
type QuietTrigger string

const (
	// QuietTriggerUser indicates a user-initiated change (CLI, TUI, etc.)
	QuietTriggerUser QuietTrigger = "user"
	// QuietTriggerRemote indicates a change made over D-Bus
	QuietTriggerRemote QuietTrigger = "remote"
	// QuietTriggerConfig indicates the daemon applied its configured initial state
	QuietTriggerConfig QuietTrigger = "config"
)

// QuietTransition records details about a quiet mode change.
type QuietTransition struct {
	Trigger   QuietTrigger `json:"trigger"`
	Reason    string       `json:"reason"`           // e.g. "quiet on", "funeral prayer"
	Source    string       `json:"source,omitempty"` // e.g. "cli", "tui", "adhand"
	Timestamp int64        `json:"timestamp"`
}

// SharedState contains state that is shared between adhan and adhand.
// This is persisted to ~/.local/share/adhan/state.json
type SharedState struct {
	Quiet      bool  `json:"quiet"`
	QuietSince int64 `json:"quiet_since,omitempty"` // Unix timestamp

	LastTransition *QuietTransition `json:"last_transition,omitempty"`

	SchemaVersion int `json:"schema_version"`
}

// CurrentSchemaVersion is the current version of the state schema.
const CurrentSchemaVersion = 1

// stateFileMutex protects concurrent access to state files from one process.
var stateFileMutex sync.RWMutex

// DefaultSharedState returns a new SharedState with default values.
func DefaultSharedState() *SharedState {
	return &SharedState{
		SchemaVersion: CurrentSchemaVersion,
	}
}

// LoadSharedState loads the shared state from path.
// A missing or corrupt file yields the default state.
func LoadSharedState(path string) (*SharedState, error) {
	stateFileMutex.RLock()
	defer stateFileMutex.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSharedState(), nil
		}
		return nil, err
	}

	var state SharedState
	if err := json.Unmarshal(data, &state); err != nil {
		return DefaultSharedState(), nil
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	return &state, nil
}

// SaveSharedState writes state to path atomically.
func SaveSharedState(path string, state *SharedState) error {
	stateFileMutex.Lock()
	defer stateFileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	if state.SchemaVersion == 0 {
		state.SchemaVersion = CurrentSchemaVersion
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write atomically via temp file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// SetQuiet updates quiet mode and records the transition.
func (s *SharedState) SetQuiet(enabled bool, trigger QuietTrigger, reason, source string, now time.Time) {
	if enabled && !s.Quiet {
		s.QuietSince = now.Unix()
	} else if !enabled {
		s.QuietSince = 0
	}
	s.Quiet = enabled

	s.LastTransition = &QuietTransition{
		Trigger:   trigger,
		Reason:    reason,
		Source:    source,
		Timestamp: now.Unix(),
	}
}

// ToggleQuiet flips quiet mode and returns the new state.
func (s *SharedState) ToggleQuiet(trigger QuietTrigger, reason, source string, now time.Time) bool {
	s.SetQuiet(!s.Quiet, trigger, reason, source, now)
	return s.Quiet
}
