// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package endpoint

import (
	"sync"

	"qms/cli/internal/logging"
)

var (
	// Process-wide resolved configuration. Computed on first use and never
	// re-evaluated, even if the environment changes afterwards.
	cached     Config
	cachedOnce sync.Once
	cacheLock  sync.Mutex
)

// Get returns the process-wide endpoint configuration, resolving it from the
// environment on first call.
func Get() Config {
	cacheLock.Lock()
	defer cacheLock.Unlock()
	cachedOnce.Do(func() {
		in, err := LoadInputs()
		if err != nil {
			logging.Logger.Warn().Err(err).Msg("endpoint env unreadable, using defaults")
			in = Inputs{}
		}
		if in.HostHasScheme() {
			logging.Logger.Warn().
				Str("REACT_APP_API_URL", in.Host).
				Msg("API host override contains a scheme; it is used verbatim as a host")
		}
		cached = Resolve(in)
	})
	return cached
}

// Reset drops the cached configuration (primarily for testing).
func Reset() {
	cacheLock.Lock()
	defer cacheLock.Unlock()
	cached = Config{}
	cachedOnce = sync.Once{}
}
