package logger

import (
	"log/slog"

	"balance_engine/internal/app/port"
)

// slogAdapter implements port.Logger on top of a slog.Logger.
// A nil logger falls back to the package-level global.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter creates a port.Logger writing through the global logger.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

// NewNop returns a logger that drops every record. Used by tests.
func NewNop() port.Logger {
	return &slogAdapter{l: slog.New(slog.DiscardHandler)}
}

func (a *slogAdapter) logger() *slog.Logger {
	if a.l != nil {
		return a.l
	}
	return Default()
}

func (a *slogAdapter) Info(msg string, args ...any) {
	a.logger().Info(msg, args...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	a.logger().Debug(msg, args...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	a.logger().Warn(msg, args...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	a.logger().Error(msg, args...)
}

// With returns an adapter that adds args to every record.
func (a *slogAdapter) With(args ...any) port.Logger {
	return &slogAdapter{l: a.logger().With(args...)}
}
