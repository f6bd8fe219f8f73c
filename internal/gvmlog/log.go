// Package gvmlog provides the structured, terminal-aware logger shared by
// the CLI and the compile pool.
package gvmlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// New builds a slog.Logger writing to w (os.Stderr if nil). When go-isatty
// reports w as a terminal, w is wrapped with go-colorable so ANSI codes
// would also work on Windows consoles; a redirected-to-file log is written
// unwrapped. slog's text handler emits no color codes itself, so the
// output is plain text either way.
func New(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Default is the package-wide fallback logger, used by components that
// were not handed one explicitly (e.g. constructed outside of
// internal/config's wiring, such as in tests).
var Default = New(slog.LevelInfo, os.Stderr)
