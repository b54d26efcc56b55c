// Package file provides the JSON file-backed implementation of the
// CheckpointStore driven port.
//
// The whole checkpoint document is rewritten on every save, keyed by
// schema name and indented so it stays safe to inspect and edit between
// runs.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/undltools/oaisync/internal/core/domain"
	"github.com/undltools/oaisync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.CheckpointStore = (*Store)(nil)

// Store persists harvest checkpoints as one JSON document on disk.
type Store struct {
	path string
}

// NewStore creates a checkpoint store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the checkpoint file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the checkpoint document. A missing file yields an empty
// map, not an error.
func (s *Store) Load(_ context.Context) (domain.Checkpoints, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.Checkpoints{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint file: %w", err)
	}

	var checkpoints domain.Checkpoints
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		return nil, fmt.Errorf("parsing checkpoint file %s: %w", s.path, err)
	}
	if checkpoints == nil {
		checkpoints = domain.Checkpoints{}
	}
	return checkpoints, nil
}

// Save rewrites the whole checkpoint document, creating any missing
// parent directory.
func (s *Store) Save(_ context.Context, checkpoints domain.Checkpoints) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating checkpoint directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(checkpoints, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling checkpoints: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing checkpoint file: %w", err)
	}
	return nil
}
