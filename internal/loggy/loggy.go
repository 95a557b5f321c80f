// Package loggy wraps log/slog with a process-wide logger, per-component
// instance loggers and context helpers.
package loggy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Config configures the logger
type Config struct {
	Level       slog.Level
	Format      string                                       // "json" or "text"
	Output      string                                       // "stdout", "stderr", or a file path
	AddSource   bool                                         // Include source code position in logs
	TimeFormat  string                                       // Time format for logs (empty uses RFC3339)
	ReplaceAttr func(groups []string, a slog.Attr) slog.Attr // Custom attribute replacer
}

// Logger wraps slog.Logger. A nil *Logger discards everything.
type Logger struct {
	slogger   *slog.Logger
	addSource bool
}

// Init initializes the global logger once per process
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var output io.Writer
		output, err = openOutput(cfg.Output)
		if err != nil {
			NewNoopLogger()
			return
		}
		globalLogger = New(output, cfg)
	})
	return err
}

// New builds a standalone logger writing to w, leaving the global logger untouched
func New(w io.Writer, cfg Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		ReplaceAttr: cfg.ReplaceAttr,
	}
	if cfg.TimeFormat != "" {
		opts.ReplaceAttr = formatTime(cfg.TimeFormat, cfg.ReplaceAttr)
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{slogger: slog.New(handler), addSource: cfg.AddSource}
}

func formatTime(layout string, next func([]string, slog.Attr) slog.Attr) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && len(groups) == 0 {
			if t, ok := a.Value.Any().(time.Time); ok {
				a = slog.String(a.Key, t.Format(layout))
			}
		}
		if next != nil {
			return next(groups, a)
		}
		return a
	}
}

// openOutput resolves "stdout", "stderr" or a log file path
func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	return globalLogger
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *Logger) {
	globalLogger = logger
}

// NewNoopLogger creates a logger that discards all output and installs it as
// the global logger, useful for testing
func NewNoopLogger() *Logger {
	noop := &Logger{slogger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))}
	SetGlobalLogger(noop)
	return noop
}

// log writes one record, tagged with the source of the caller skip frames up
// when the logger was configured with AddSource
func (l *Logger) log(skip int, level slog.Level, msg string, args ...any) {
	if l == nil || l.slogger == nil {
		return
	}
	ctx := context.Background()
	if !l.slogger.Enabled(ctx, level) {
		return
	}

	r := slog.NewRecord(time.Now(), level, msg, 0)
	if _, file, line, ok := runtime.Caller(skip); ok && l.addSource {
		r.AddAttrs(slog.String("source", fmt.Sprintf("%s:%d", file, line)))
	}
	r.Add(args...)
	_ = l.slogger.Handler().Handle(ctx, r)
}

// Debug logs at debug level on the global logger
func Debug(msg string, args ...any) { globalLogger.log(2, slog.LevelDebug, msg, args...) }

// Info logs at info level on the global logger
func Info(msg string, args ...any) { globalLogger.log(2, slog.LevelInfo, msg, args...) }

// Warn logs at warn level on the global logger
func Warn(msg string, args ...any) { globalLogger.log(2, slog.LevelWarn, msg, args...) }

// Error logs at error level on the global logger
func Error(msg string, args ...any) { globalLogger.log(2, slog.LevelError, msg, args...) }

func (l *Logger) Debug(msg string, args ...any) { l.log(2, slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(2, slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(2, slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(2, slog.LevelError, msg, args...) }

// With returns a Logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	if l == nil || l.slogger == nil {
		return l
	}
	return &Logger{slogger: l.slogger.With(args...), addSource: l.addSource}
}

// WithGroup returns a Logger that nests the attributes of every record under name
func (l *Logger) WithGroup(name string) *Logger {
	if l == nil || l.slogger == nil {
		return l
	}
	return &Logger{slogger: l.slogger.WithGroup(name), addSource: l.addSource}
}

// WithError adds the error and its type to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With(
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
	)
}
