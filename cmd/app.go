// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"github.com/rs/zerolog"

	"qms/cli/internal/backend"
	"qms/cli/internal/config"
	"qms/cli/internal/endpoint"
	"qms/cli/internal/httpclient"
	"qms/cli/internal/logging"
	"qms/cli/internal/session"
	"qms/cli/internal/storage"
)

// app is the per-process wiring shared by all commands: one endpoint, one
// HTTP client, one session owner.
type app struct {
	cfg      config.Config
	endpoint endpoint.Config
	client   *httpclient.Client
	session  *session.Manager
	api      backend.API
	log      zerolog.Logger
}

// newApp wires the components around an already opened store.
func newApp(cfg config.Config, ep endpoint.Config, store storage.Store, log zerolog.Logger) (*app, error) {
	client := httpclient.New(ep.APIURL, httpclient.WithUserAgent("qms-cli/"+Version))
	mgr, err := session.New(store, client, log)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:      cfg,
		endpoint: ep,
		client:   client,
		session:  mgr,
		api:      backend.New(client),
		log:      log,
	}, nil
}

// current is set up by the root command's PersistentPreRunE.
var current *app

// setup loads configuration, initializes logging and opens the session store.
func setup() (*app, error) {
	if current != nil {
		return current, nil
	}

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagStorage != "" {
		cfg.Storage = flagStorage
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat)

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s session storage: %w", cfg.Storage, err)
	}

	a, err := newApp(cfg, endpoint.Get(), store, log)
	if err != nil {
		return nil, err
	}
	current = a
	return a, nil
}

// teardown releases the process wiring.
func teardown() {
	if current != nil {
		current.session.Close()
		current = nil
	}
}
