// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/99designs/keyring"

	"qms/cli/internal/xdg"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "qms"

// keyringPasswordEnv supplies the passphrase for the encrypted file backend
// used on hosts without a native credential store.
const keyringPasswordEnv = "QMS_KEYRING_PASSWORD"

// KeyringStore keeps the session record in the OS keychain.
type KeyringStore struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewKeyringStore wraps an already opened keyring.
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

// OpenKeyring opens the OS keyring using the native backend for the platform.
// Linux hosts without secret-service or pass fall back to an encrypted file
// under the XDG state directory.
func OpenKeyring() (*KeyringStore, error) {
	cfg := keyring.Config{
		ServiceName: ServiceName,
		PassPrefix:  ServiceName,
	}

	switch runtime.GOOS {
	case "darwin":
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.PassBackend,
		}
		cfg.KeychainTrustApplication = true
	case "windows":
		cfg.AllowedBackends = []keyring.BackendType{keyring.WinCredBackend}
		cfg.WinCredPrefix = ServiceName
	default:
		dir, err := xdg.StateDir()
		if err != nil {
			return nil, err
		}
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		}
		cfg.FileDir = filepath.Join(dir, "keyring")
		cfg.FilePasswordFunc = filePassword
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, err
	}
	return NewKeyringStore(ring), nil
}

// filePassword reads the file backend passphrase from the environment before
// falling back to an interactive prompt.
func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(keyringPasswordEnv); pw != "" {
		return pw, nil
	}
	return keyring.TerminalPrompt(prompt)
}

// Get retrieves a value from the keychain.
// This method is thread-safe.
func (s *KeyringStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(it.Data), true, nil
}

// Set stores a value in the keychain.
// This method is thread-safe.
func (s *KeyringStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       ServiceName + " " + key,
		Description: "QMS CLI session",
	})
}

// Remove deletes a value from the keychain.
// This method is thread-safe.
func (s *KeyringStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
