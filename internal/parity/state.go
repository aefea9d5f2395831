// Package parity implements the branch-parity coordinator: the state
// machine that keeps a code repository and its companion threads
// repository on correspondingly named branches, remediating divergence
// through preflight checks, stash preservation, content-aware conflict
// resolution, and bounded push retries.
package parity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mschirtzinger/tether/internal/thread"
)

// Status is the persisted parity status for a topic.
type Status string

const (
	// StatusSynced means the last sync attempt completed cleanly.
	StatusSynced Status = "synced"

	// StatusDirty means uncommitted local changes were present at the
	// last observation.
	StatusDirty Status = "dirty"

	// StatusConflict means the last sync stopped on conflicts outside
	// the recognized document shapes; manual intervention required.
	StatusConflict Status = "conflict"

	// StatusDrift means the paired repositories were on different
	// branches.
	StatusDrift Status = "drift"

	// StatusFailed means the last sync failed for a reason recorded in
	// last_error.
	StatusFailed Status = "failed"
)

// State is the persisted per-topic parity record. Written exclusively
// by the coordinator while holding the topic lock; read freely by
// health reports and the CLI.
type State struct {
	Status           Status    `json:"status"`
	CodeBranch       string    `json:"code_branch"`
	ThreadsBranch    string    `json:"threads_branch"`
	LastSyncedCommit string    `json:"last_synced_commit,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastError        string    `json:"last_error,omitempty"`
}

// Store persists parity state as one JSON document per topic. Writes
// go through a temp file and rename so concurrent readers never see a
// partial document.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on
// first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// pathFor returns the state file path for a topic.
func (s *Store) pathFor(topic string) string {
	return filepath.Join(s.dir, thread.SanitizeTopic(topic)+".json")
}

// Save atomically overwrites the topic's state.
func (s *Store) Save(topic string, state *State) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal parity state: %w", err)
	}

	path := s.pathFor(topic)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}
	return nil
}

// Load reads a topic's state. Returns (nil, nil) when no state exists
// yet.
func (s *Store) Load(topic string) (*State, error) {
	data, err := os.ReadFile(s.pathFor(topic))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read parity state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse parity state: %w", err)
	}
	return &state, nil
}

// List returns all persisted states keyed by topic.
func (s *Store) List() (map[string]*State, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*State{}, nil
		}
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	states := make(map[string]*State)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		topic := strings.TrimSuffix(entry.Name(), ".json")
		state, err := s.Load(topic)
		if err != nil || state == nil {
			// Unreadable entries are skipped; health reporting must not
			// fail over one bad file.
			continue
		}
		states[topic] = state
	}
	return states, nil
}
