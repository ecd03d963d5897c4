package ragfuse

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/ragfuse/corpus"
)

// Logger wraps slog.Logger with retrieval-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCorpus adds a corpus field to the logger.
func (l *Logger) WithCorpus(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("corpus", name),
	}
}

// LogCorpusLoad logs the outcome of loading one corpus version.
func (l *Logger) LogCorpusLoad(ctx context.Context, name, version string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "corpus load failed",
			"corpus", name,
			"version", version,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "corpus loaded",
			"corpus", name,
			"version", version,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, topK, results, skipped int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"top_k", topK,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"top_k", topK,
			"results", results,
			"skipped_corpora", skipped,
			"elapsed", elapsed,
		)
	}
}

// LogFusion logs a fusion pass.
func (l *Logger) LogFusion(ctx context.Context, lists, candidates, fused int) {
	l.DebugContext(ctx, "fusion completed",
		"lists", lists,
		"candidates", candidates,
		"fused", fused,
	)
}

// LogReload logs a manifest-triggered reload.
func (l *Logger) LogReload(ctx context.Context, fromVersion, toVersion string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "reload failed",
			"from_version", fromVersion,
			"to_version", toVersion,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "reload completed",
			"from_version", fromVersion,
			"to_version", toVersion,
		)
	}
}

// LogMappingCorruption logs a dropped hit whose id/doc mapping is missing.
func (l *Logger) LogMappingCorruption(ctx context.Context, corpusName string, internalID uint32) {
	l.WarnContext(ctx, "dropping hit with corrupt mapping",
		"corpus", corpusName,
		"internal_id", internalID,
		"error", corpus.ErrMappingCorruption,
	)
}
