// Package store persists the last-set value of each relay across restarts.
// Only relay states are saved; telemetry and time are never persisted.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/piface-relay/internal/relay"
)

// State is the persisted file content.
type State struct {
	Relays  [relay.Count]bool `yaml:"relays"`
	SavedAt time.Time         `yaml:"saved_at"`
}

// Store reads and writes the relay state file.
type Store struct {
	path string
}

// New returns a Store backed by path. An empty path disables persistence.
func New(path string) *Store {
	return &Store{path: path}
}

// Enabled reports whether a state file is configured.
func (s *Store) Enabled() bool {
	return s.path != ""
}

// Load reads the state file. ok is false when persistence is disabled or
// nothing has been saved yet.
func (s *Store) Load() (st State, ok bool, err error) {
	if !s.Enabled() {
		return State{}, false, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("parse state file: %w", err)
	}
	return st, true, nil
}

// Save writes relays atomically (temp file + rename).
func (s *Store) Save(relays [relay.Count]bool, now time.Time) error {
	if !s.Enabled() {
		return nil
	}
	data, err := yaml.Marshal(State{Relays: relays, SavedAt: now.UTC()})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".relay-state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
