// Package logging sets up structured logging: JSON records to a rotating
// file and, optionally, readable text on stderr.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unklstewy/ads-btrack/pkg/config"
)

type Logger struct {
	*slog.Logger
	LogFile string
	Start   time.Time

	file *lumberjack.Logger
}

// ParseLevel maps debug|info|warn|error to a slog level. An empty string is
// info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
}

// New builds a Logger from cfg. stderr receives the text output when
// cfg.Stderr is set; pass nil for os.Stderr.
func New(cfg config.LogConfig, stderr io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	l := &Logger{Start: time.Now()}
	var handlers []slog.Handler

	if cfg.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		l.LogFile = cfg.File
		handlers = append(handlers, slog.NewJSONHandler(l.file, opts))
	}
	if cfg.Stderr {
		if stderr == nil {
			stderr = os.Stderr
		}
		handlers = append(handlers, slog.NewTextHandler(stderr, opts))
	}

	switch len(handlers) {
	case 0:
		l.Logger = slog.New(slog.NewTextHandler(io.Discard, opts))
	case 1:
		l.Logger = slog.New(handlers[0])
	default:
		l.Logger = slog.New(fanout(handlers))
	}

	l.Logger.Debug("logging started",
		slog.Time("start", l.Start),
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH))
	if bi, ok := debug.ReadBuildInfo(); ok {
		l.Logger.Debug("build", slog.String("go", bi.GoVersion), slog.String("path", bi.Path))
	}

	return l, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Warnf logs a printf-style warning. A nil Logger falls back to slog's
// default logger.
func (l *Logger) Warnf(msg string, args ...any) {
	if l == nil {
		slog.Warn(fmt.Sprintf(msg, args...))
	} else {
		l.Logger.Warn(fmt.Sprintf(msg, args...))
	}
}

// Infof logs a printf-style message. It is discarded on a nil Logger.
func (l *Logger) Infof(msg string, args ...any) {
	if l != nil {
		l.Logger.Info(fmt.Sprintf(msg, args...))
	}
}

// Slog returns the underlying slog logger, or slog's default for a nil
// Logger.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l.Logger
}

// fanout sends every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
