package log

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"myfinance/internal/core"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from ctx, falling back to the slog default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// ErrorType classifies err into one of the ErrorType constants.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return ErrorTypeConflict
	case errors.Is(err, core.ErrStorage):
		return ErrorTypeDatabase
	default:
		return ErrorTypeInternal
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogOperation records the outcome of one ledger operation. Caller errors
// (validation, not found, conflict) log at warn, everything else at error.
func (sl *StructuredLogger) LogOperation(ctx context.Context, op, ownerID string, started time.Time, err error, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.
		WithOperation(op).
		WithOwner(ownerID)
	fields[FieldDuration] = time.Since(started).Milliseconds()
	fields[FieldSuccess] = err == nil

	if err == nil {
		sl.logger.DebugContext(ctx, "Ledger operation completed", fields.ToSlice()...)
		return
	}

	errType := ErrorType(err)
	fields = fields.WithError(err).WithErrorType(errType)
	level := slog.LevelError
	if errType != ErrorTypeDatabase && errType != ErrorTypeInternal {
		level = slog.LevelWarn
	}
	sl.logger.Logger.Log(ctx, level, "Ledger operation failed", sl.logger.withComponent(fields.ToSlice())...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithErrorType(ErrorType(err)).
		WithOperation(operation)

	sl.logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
