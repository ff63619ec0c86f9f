// Package logutil configures the process-wide slog logger.
package logutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"
)

const LevelTrace slog.Level = -8

// NewLogger returns a text logger for one vocabtrim command. Every record
// carries cmd=<command> when command is set. Below INFO records also carry
// their source file basename; the trace level prints as TRACE.
func NewLogger(w io.Writer, level slog.Level, command string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   level < slog.LevelInfo,
		ReplaceAttr: replaceAttr,
	}))

	if command != "" {
		logger = logger.With("cmd", command)
	}

	return logger
}

func replaceAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.LevelKey:
		if level, ok := attr.Value.Any().(slog.Level); ok && level == LevelTrace {
			attr.Value = slog.StringValue("TRACE")
		}
	case slog.SourceKey:
		if source, ok := attr.Value.Any().(*slog.Source); ok {
			source.File = filepath.Base(source.File)
		}
	}
	return attr
}

// Level maps the debug verbosity from the environment to a slog level:
// 0 is INFO, 1 is DEBUG and anything higher is TRACE.
func Level(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelInfo
	case verbosity == 1:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// Trace logs at LevelTrace with the caller as source.
func Trace(msg string, args ...any) {
	logAt(context.Background(), LevelTrace, 1, msg, args...)
}

// Timed starts a pipeline stage such as a corpus scan or a checkpoint load.
// The returned func logs msg at DEBUG with the elapsed time and any further
// attributes known only once the stage is done.
func Timed(msg string, args ...any) func(done ...any) {
	start := time.Now()
	return func(done ...any) {
		attrs := append(append(args[:len(args):len(args)], done...), "elapsed", time.Since(start).Round(time.Millisecond))
		logAt(context.Background(), slog.LevelDebug, 1, msg, attrs...)
	}
}

// logAt attributes the record to the caller skip frames above its own caller.
func logAt(ctx context.Context, level slog.Level, skip int, msg string, args ...any) {
	logger := slog.Default()
	if !logger.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(skip+2, pcs[:])
	record := slog.NewRecord(time.Now(), level, msg, pcs[0])
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}
