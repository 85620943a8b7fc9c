package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps state in a JSON object on disk. Every Set and Delete rewrites
// the whole file.
type FileStore struct {
	path  string
	state map[string]string
}

// OpenFile loads the JSON state file at path. A missing file is an empty state.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, state: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state file: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.state[key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.state[key] = value
	return s.save()
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	delete(s.state, key)
	return s.save()
}

func (s *FileStore) Close() error {
	return nil
}

// save writes to a temporary file first so a crash never leaves a truncated
// state file behind.
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, filepath.Clean(s.path)); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
