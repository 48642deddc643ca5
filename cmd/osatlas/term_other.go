//go:build !linux

package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

const clearSequence = "\033[H\033[2J"

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// enableSingleView is a no-op off Linux; the dashboard simply scrolls.
func enableSingleView(io.Writer, zerolog.Logger) func() {
	return func() {}
}
