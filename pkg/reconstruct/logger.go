package reconstruct

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with reconstruction-specific fields.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON lines to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithRequest tags the logger with a request id.
func (l *Logger) WithRequest(id string) *Logger {
	return &Logger{Logger: l.Logger.With("request", id)}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", dim)}
}

// WithCount adds a point count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{Logger: l.Logger.With("count", count)}
}

// LogStage logs the end of one pipeline stage.
func (l *Logger) LogStage(ctx context.Context, stage string, elapsed time.Duration, err error, attrs ...any) {
	if err != nil {
		l.ErrorContext(ctx, "stage failed",
			"stage", stage,
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "stage completed",
		append([]any{"stage", stage, "elapsed", elapsed}, attrs...)...,
	)
}

// LogResult logs a finished reconstruction.
func (l *Logger) LogResult(ctx context.Context, res *Result) {
	if len(res.Warnings) > 0 {
		l.WarnContext(ctx, "reconstruction completed with warnings",
			"facets", res.Stats.Accepted,
			"warnings", res.Warnings,
		)
		return
	}
	l.InfoContext(ctx, "reconstruction completed",
		"facets", res.Stats.Accepted,
		"vertices", res.Mesh.VertexCount(),
		"components", res.Stats.Components,
	)
}
