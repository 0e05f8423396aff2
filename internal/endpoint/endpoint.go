// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package endpoint resolves the backend base URL from environment configuration.
//
// Resolution is a pure function of three inputs (host, port, production flag) and
// runs once per process; see Get.
package endpoint

import (
	"strings"

	"github.com/caarlos0/env/v11"

	qerrors "qms/cli/internal/errors"
)

// Defaults applied when the corresponding override is absent.
const (
	DefaultHost = "localhost"
	DefaultPort = "8000"
)

// productionEnv is the QMS_ENV value that switches the resolver to HTTPS.
const productionEnv = "production"

// Inputs are the raw environment values the resolver works from.
type Inputs struct {
	Host       string `env:"REACT_APP_API_URL"`
	Port       string `env:"REACT_APP_API_PORT"`
	Env        string `env:"QMS_ENV"`
	Production bool
}

// Config is the resolved endpoint configuration. It is immutable once built.
type Config struct {
	APIURL string `json:"api_url"`
	IsProd bool   `json:"is_prod"`
}

// Resolve derives the API URL from the given inputs.
// Production yields https://<host> (TLS is terminated in front of the backend);
// otherwise http://<host>:<port>. Overrides are used verbatim.
func Resolve(in Inputs) Config {
	host := in.Host
	if host == "" {
		host = DefaultHost
	}
	port := in.Port
	if port == "" {
		port = DefaultPort
	}
	if in.Production {
		return Config{APIURL: "https://" + host, IsProd: true}
	}
	return Config{APIURL: "http://" + host + ":" + port}
}

// LoadInputs reads resolver inputs from the process environment.
func LoadInputs() (Inputs, error) {
	return LoadInputsFrom(nil)
}

// LoadInputsFrom reads resolver inputs from environ, or from the process
// environment when environ is nil.
func LoadInputsFrom(environ map[string]string) (Inputs, error) {
	var in Inputs
	if err := env.ParseWithOptions(&in, env.Options{Environment: environ}); err != nil {
		return in, qerrors.Wrap(qerrors.ConfigInvalid, "parse endpoint env", err)
	}
	in.Production = strings.EqualFold(strings.TrimSpace(in.Env), productionEnv)
	return in, nil
}

// HostHasScheme reports whether the host override looks like a full origin
// rather than a bare host. Such values are still used verbatim.
func (in Inputs) HostHasScheme() bool {
	return strings.Contains(in.Host, "://")
}
