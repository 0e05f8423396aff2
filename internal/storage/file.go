// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"qms/cli/internal/xdg"
)

// sessionFileName is the file FileStore keeps under the XDG state dir.
const sessionFileName = "session.json"

// ErrCorrupt marks a session file that exists but cannot be parsed. Get
// reports it; Set and Remove discard the unreadable content and rewrite the file.
var ErrCorrupt = errors.New("session file is corrupt")

// FileStore keeps the session record in a JSON object file readable only by
// the current user. Every write rewrites the whole file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// OpenFile returns the FileStore located in the XDG state directory.
func OpenFile() (*FileStore, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return nil, err
	}
	return NewFileStore(filepath.Join(dir, sessionFileName)), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := entries[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readOrReset()
	if err != nil {
		return err
	}
	entries[key] = value
	return s.write(entries)
}

func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if errors.Is(err, ErrCorrupt) {
		// Rewrite as an empty store so the bad content does not outlive a logout.
		return s.write(map[string]string{})
	}
	if err != nil {
		return err
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return s.write(entries)
}

// read loads all entries; a missing file is an empty store.
func (s *FileStore) read() (map[string]string, error) {
	entries := map[string]string{}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrCorrupt, s.path, err)
	}
	return entries, nil
}

// readOrReset is read with a corrupt file treated as empty.
func (s *FileStore) readOrReset() (map[string]string, error) {
	entries, err := s.read()
	if errors.Is(err, ErrCorrupt) {
		return map[string]string{}, nil
	}
	return entries, err
}

// write replaces the file atomically via a temp file in the same directory.
func (s *FileStore) write(entries map[string]string) error {
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+sessionFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
