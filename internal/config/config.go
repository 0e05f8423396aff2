// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package config loads and stores CLI configuration in the XDG config dir.
// Only non-secret settings are kept here; the session token and user record go
// to the durable session store (see internal/storage).
//
// Values from the file can be overridden by QMS_* environment variables, which
// may also come from .env / .env.local files in the working directory.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	qerrors "qms/cli/internal/errors"
	"qms/cli/internal/xdg"
)

// Storage backends accepted by the storage field.
const (
	StorageKeychain = "keychain"
	StorageFile     = "file"
)

// Config holds non-sensitive CLI settings.
type Config struct {
	LogLevel  string `json:"log_level" env:"QMS_LOG_LEVEL"`
	LogFormat string `json:"log_format" env:"QMS_LOG_FORMAT"`
	// Storage selects where the session record is persisted: "keychain" or "file".
	Storage string `json:"storage" env:"QMS_STORAGE"`
}

// Defaults returns the configuration used when no file exists.
func Defaults() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "console",
		Storage:   StorageKeychain,
	}
}

// LoadDotEnv loads .env files into the process environment.
// Missing files are ignored; variables already set are not overwritten.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// path returns the path to the config file.
func path() (string, error) {
	dir, err := xdg.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration; missing file returns defaults. Environment
// overrides are applied on top of whatever the file provided.
func Load() (Config, error) {
	c := Defaults()
	p, err := path()
	if err != nil {
		return c, qerrors.Wrap(qerrors.ConfigInvalid, "resolve config dir", err)
	}
	data, err := os.ReadFile(p)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return c, qerrors.Wrap(qerrors.ConfigInvalid, "read "+p, err)
	default:
		if err := json.Unmarshal(data, &c); err != nil {
			return c, qerrors.Wrap(qerrors.ConfigInvalid, "parse "+p, err)
		}
	}
	if err := env.Parse(&c); err != nil {
		return c, qerrors.Wrap(qerrors.ConfigInvalid, "parse env", err)
	}
	return c.withDefaults(), nil
}

// Save writes configuration with 0600 permissions.
func Save(c Config) error {
	p, err := path()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

// withDefaults fills fields left empty by a partial config file.
func (c Config) withDefaults() Config {
	d := Defaults()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
	if c.Storage == "" {
		c.Storage = d.Storage
	}
	return c
}
