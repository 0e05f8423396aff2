// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package logging provides the process logger and utilities for secure logging.
// It includes functions for masking sensitive information in log messages and
// formatting errors for user-friendly display while protecting credentials and tokens.
//
// The package helps ensure that passwords, bearer tokens and access tokens returned
// by the login endpoint are not accidentally exposed in logs or error messages.
package logging

import (
	"regexp"
)

var (
	rePassword  = regexp.MustCompile(`(?i)(password=)([^\s&;]+)`)
	reToken     = regexp.MustCompile(`(?i)(token=|bearer\s+)([A-Za-z0-9._~+/=-]+)`)
	reJSONField = regexp.MustCompile(`(?i)("(?:password|access_token|token)"\s*:\s*")([^"]*)(")`)
	reURLCreds  = regexp.MustCompile(`(?i)(://)([^:/@\s]+):([^@\s]+)(@)`)
)

// Mask replaces sensitive values in the input string with "*".
// For URLs carrying credentials, both username and password are masked.
func Mask(s string) string {
	out := s
	out = rePassword.ReplaceAllString(out, "$1***")
	out = reToken.ReplaceAllString(out, "$1***")
	out = reJSONField.ReplaceAllString(out, "$1***$3")
	out = reURLCreds.ReplaceAllString(out, "$1*:*$4")
	return out
}
