// Copyright (c) 2025 The QMS Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package terminal provides helpers for tidying interactive prompts.
package terminal

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// DefaultWidth is used when the terminal size cannot be read.
const DefaultWidth = 80

// Width returns the column count of the terminal on fd.
func Width(fd int) int {
	if w, _, err := term.GetSize(fd); err == nil && w > 0 {
		return w
	}
	return DefaultWidth
}

// LinesFor returns how many rows n characters occupy at the given width.
func LinesFor(n, width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	lines := (n + width - 1) / width
	if lines < 1 {
		return 1
	}
	return lines
}

// ClearLines erases the cursor's line and the n-1 lines above it, leaving the
// cursor at the start of the topmost cleared line.
func ClearLines(w io.Writer, n int) {
	for i := 0; i < n; i++ {
		fmt.Fprint(w, "\r\x1b[2K")
		if i < n-1 {
			fmt.Fprint(w, "\x1b[1A")
		}
	}
}
