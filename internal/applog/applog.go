// Package applog builds the zerolog logger for a run and carries it through the context
package applog

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type loggerWithRunID struct{}

// New builds a logger writing to out. Unknown levels fall back to warn so the CLI stays quiet by default.
func New(out io.Writer, level, appEnv string) zerolog.Logger {
	level = strings.ToLower(strings.TrimSpace(level))
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}

	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// WithRunID tags logger with a fresh run id and puts it into ctx.
func WithRunID(ctx context.Context, logger zerolog.Logger) (context.Context, string) {
	runID := uuid.NewString()
	l := logger.With().Str("run_id", runID).Logger()
	return context.WithValue(ctx, loggerWithRunID{}, l), runID
}

// LoggerFromContext extracts logger from context - used in service-layer and clients
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerWithRunID{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}
