package core

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SlogLogger implements Logger on top of log/slog.
type SlogLogger struct {
	logger *slog.Logger
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps an existing slog logger. A nil logger falls back to
// slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// NewSlogLoggerFor builds a text or json handler writing to w at the named level.
func NewSlogLoggerFor(w io.Writer, level, format string) (*SlogLogger, error) {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return NewSlogLogger(slog.New(handler)), nil
}

// ParseLogLevel maps debug, info, warn and error to slog levels. The empty string is info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

func (l *SlogLogger) Debug(msg string, kv ...any) { l.logger.Debug(msg, kv...) }
func (l *SlogLogger) Info(msg string, kv ...any)  { l.logger.Info(msg, kv...) }
func (l *SlogLogger) Warn(msg string, kv ...any)  { l.logger.Warn(msg, kv...) }
func (l *SlogLogger) Error(msg string, kv ...any) { l.logger.Error(msg, kv...) }
