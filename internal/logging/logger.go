package logging

import (
	"io"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

const (
	DefaultLevel = "info"
	// DefaultMaxMessages is how many recent messages a logger keeps when
	// Options.MaxMessages is zero.
	DefaultMaxMessages = 100
)

var levels = map[string]slog.Level{
	"debug":      slog.LevelDebug,
	DefaultLevel: slog.LevelInfo,
	"warn":       slog.LevelWarn,
	"error":      slog.LevelError,
}

func ValidLevels() []string {
	keys := maps.Keys(levels)
	slices.SortFunc(keys, func(a, b string) int {
		if a == DefaultLevel {
			return -1
		}
		if b == DefaultLevel {
			return 1
		}
		if a < b {
			return -1
		}
		return 1
	})
	return keys
}

type Options struct {
	Level string
	// Output receives every formatted line in addition to the in-memory record.
	Output io.Writer
	// MaxMessages bounds the in-memory record; older messages are dropped.
	// Zero means DefaultMaxMessages, a negative value disables recording.
	MaxMessages int
}

type Logger struct {
	logger *slog.Logger
	writer *writer
}

func NewLogger(opts Options) *Logger {
	limit := opts.MaxMessages
	if limit == 0 {
		limit = DefaultMaxMessages
	}
	w := &writer{out: opts.Output, limit: max(limit, 0)}
	logger := &Logger{writer: w}
	logger.SetLevel(opts.Level)
	return logger
}

func (l *Logger) SetLevel(level string) {
	if _, ok := levels[level]; !ok {
		level = DefaultLevel
	}
	handler := slog.NewTextHandler(l.writer, &slog.HandlerOptions{
		Level: levels[level],
	})
	l.logger = slog.New(handler)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// List returns the most recent messages, oldest first.
func (l *Logger) List() []Message {
	return l.writer.list()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Get returns the process-wide logger, creating a silent info-level one on
// first use.
func Get() *Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(Options{Level: DefaultLevel})
	}
	return defaultLogger
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}
