package internal

import (
	"context"

	"golang.org/x/exp/slog"
)

var nop (slog.Handler) = nopHandler{}

// NopLogger returns a logger that discards every record. The find, aggregate
// and mdmerge packages fall back to it when no handler was configured through
// their WithLogger option, so library users see no output unless they ask for
// it.
func NopLogger() *slog.Logger {
	return slog.New(nop)
}

// nopHandler is a slog.Handler that drops everything it is given.
type nopHandler struct{}

// Enabled reports false for every level, so callers skip building records.
func (nopHandler) Enabled(context.Context, slog.Level) bool { return false }

// Handle discards the record.
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }

// WithAttrs returns the shared nop handler; attributes are dropped.
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler { return nop }

// WithGroup returns the shared nop handler; groups are dropped.
func (nopHandler) WithGroup(string) slog.Handler { return nop }
