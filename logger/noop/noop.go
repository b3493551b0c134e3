package noop

import "log/slog"

// NewNoop returns a logger that drops every record.
func NewNoop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
