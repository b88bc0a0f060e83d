// Package logutil contains small helpers for handing slog loggers around.
package logutil

import (
	"io"
	"log/slog"
)

// discard drops every record handed to it.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Noop returns a shared logger that discards everything.
func Noop() *slog.Logger { return discard }

// NoopIfNil guards constructors that take an optional *slog.Logger.
func NoopIfNil(l *slog.Logger) *slog.Logger {
	if l == nil {
		return discard
	}
	return l
}
