// Package logger builds the *slog.Logger handlers blds's components are
// constructed with. Every component takes its logger as a constructor
// argument rather than reaching for a package-global, so this package's
// surface is just the handler-construction helper.
package logger

import (
	"io"
	"log/slog"
)

// New builds a text-handler *slog.Logger writing to w at level. Used by
// cmd/bldsd to pick stdout or a per-process logfile under --quiet.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
