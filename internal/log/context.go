package log

import (
	"context"
	"log/slog"
	"time"

	"ledger/internal/core"
)

type contextKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from the context, falling back to the
// default slog logger.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides ledger-specific log lines
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogMonthBuilt logs a finished bucket at debug level and each of its
// warnings at warn level.
func (sl *StructuredLogger) LogMonthBuilt(ctx context.Context, b core.MonthBucket, took time.Duration) {
	fields := NewFields().
		WithMonth(b.Window).
		WithOperation(OpBuildMonth)
	fields[FieldEntries] = len(b.Entries)
	fields[FieldWarnings] = len(b.Warnings)
	fields[FieldDuration] = took.Milliseconds()
	sl.logger.DebugContext(ctx, "Month bucket built", fields.ToSlice()...)

	for _, w := range b.Warnings {
		sl.LogWarning(ctx, b.Window, w)
	}
}

func (sl *StructuredLogger) LogWarning(ctx context.Context, month core.MonthWindow, w core.Warning) {
	fields := NewFields().
		WithMonth(month).
		WithWarning(w)
	sl.logger.WarnContext(ctx, w.Message, fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
