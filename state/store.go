package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/gofrs/flock"
)

// State is what the client remembers between runs: which session and
// document were open last and where the reader's focus caret was.
type State struct {
	LastSessionID  string    `json:"last_session_id,omitempty"`
	LastDocumentID string    `json:"last_document_id,omitempty"`
	CaretStart     int       `json:"caret_start,omitempty"`
	CaretEnd       int       `json:"caret_end,omitempty"`
	Updated        time.Time `json:"updated"`
}

// Store persists client state to a flock-guarded JSON file so that
// concurrent docchat invocations don't clobber each other.
type Store struct {
	path string
}

// NewStore creates a store rooted at baseDir, defaulting to
// ~/.docchat when baseDir is empty.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".docchat")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{path: filepath.Join(baseDir, "state.json")}, nil
}

// withLock runs fn while holding an exclusive lock on the state file
func (s *Store) withLock(fn func() error) error {
	fileLock := flock.New(s.path)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire state lock: %w", err)
	}
	if !locked {
		return errors.New("could not acquire state lock within 10 seconds")
	}
	defer fileLock.Unlock()

	return fn()
}

func (s *Store) read() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state is not worth failing a chat over; start fresh
		return &State{}, nil
	}
	return &state, nil
}

func (s *Store) write(state *State) error {
	state.Updated = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Load returns the persisted state, or an empty state when none exists
func (s *Store) Load() (*State, error) {
	var state *State
	err := s.withLock(func() error {
		var err error
		state, err = s.read()
		return err
	})
	return state, err
}

// Save replaces the persisted state wholesale
func (s *Store) Save(state *State) error {
	return s.withLock(func() error {
		return s.write(state)
	})
}

// Update merges the non-zero fields of partial into the persisted state
// and returns the result. Zero values in partial leave existing values
// untouched; use Save to reset fields.
func (s *Store) Update(partial *State) (*State, error) {
	var merged *State
	err := s.withLock(func() error {
		existing, err := s.read()
		if err != nil {
			return err
		}
		out := *partial
		if err := mergo.Merge(&out, existing); err != nil {
			return fmt.Errorf("failed to merge state: %w", err)
		}
		merged = &out
		return s.write(merged)
	})
	return merged, err
}

// Clear removes the persisted state file
func (s *Store) Clear() error {
	return s.withLock(func() error {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear state: %w", err)
		}
		return nil
	})
}
