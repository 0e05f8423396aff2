// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package storage provides the durable key-value store that holds the session
// record between CLI invocations.
//
// Two backends are available: the OS keychain/credential store (KeyringStore) and
// a private JSON file in the XDG state directory (FileStore). Both are safe for
// concurrent use.
package storage

import (
	"fmt"
)

// Keys of the durable session record.
const (
	// KeyToken holds the raw bearer token.
	KeyToken = "token"
	// KeyUser holds the JSON-serialized user record.
	KeyUser = "user"
)

// Backend names accepted by Open.
const (
	BackendKeychain = "keychain"
	BackendFile     = "file"
)

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}

// Open returns the store for the named backend.
func Open(backend string) (Store, error) {
	switch backend {
	case "", BackendKeychain:
		return OpenKeyring()
	case BackendFile:
		return OpenFile()
	default:
		return nil, fmt.Errorf("unknown storage backend %q (use %q or %q)", backend, BackendKeychain, BackendFile)
	}
}
