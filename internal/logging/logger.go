// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide diagnostic logger. It writes to stderr so that
// command output on stdout stays clean.
var Logger = zerolog.Nop()

// Init configures Logger with the given level and format ("json" or "console").
func Init(level, format string) zerolog.Logger {
	Logger = New(os.Stderr, level, format)
	log.Logger = Logger
	return Logger
}

// New builds a logger writing to w without touching the global state.
func New(w io.Writer, level, format string) zerolog.Logger {
	var out io.Writer = w
	if strings.ToLower(format) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().
		Timestamp().
		Logger()
}

// ParseLevel parses a string log level, defaulting to warn so that routine
// CLI runs stay quiet.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.WarnLevel
	}
}
