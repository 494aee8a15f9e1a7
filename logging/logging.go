// Package logging provides the module-wide slog.Logger used for structured,
// non-validation diagnostics (commit steps). Validation
// findings themselves go through the validation package's logr-based
// accumulator, not this logger.
package logging

import (
	"context"
	"log/slog"
	"os"
)

var (
	defaultLevel   slog.LevelVar
	defaultHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &defaultLevel,
	})
	defaultLogger  = slog.New(defaultHandler)
	disabledLogger = slog.New(&disabledHandler{})
)

// disabledHandler is a slog.Handler that is disabled for all levels.
type disabledHandler struct{}

func (d *disabledHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (d *disabledHandler) Handle(context.Context, slog.Record) error { return nil }
func (d *disabledHandler) WithAttrs([]slog.Attr) slog.Handler        { return d }
func (d *disabledHandler) WithGroup(string) slog.Handler             { return d }

// Default returns the module's default logger.
func Default() *slog.Logger { return defaultLogger }

// SetDefaultLevel sets the level of the module's default logger.
func SetDefaultLevel(l slog.Level) { defaultLevel.Set(l) }

// Disabled returns a logger disabled at every level, for callers that want
// to suppress engine diagnostics entirely (most unit tests).
func Disabled() *slog.Logger { return disabledLogger }
