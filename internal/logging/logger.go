package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the shared zerolog sink used by every Logger.
type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // console or json
	Output io.Writer
}

var (
	mu   sync.RWMutex
	base = newBase(Options{Level: "info", Format: "console"})
)

// Configure replaces the shared sink. Loggers created before the call pick up
// the new sink on their next write.
func Configure(opts Options) {
	mu.Lock()
	base = newBase(opts)
	mu.Unlock()
}

func newBase(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(opts.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.Output != nil}
	}
	return zerolog.New(out).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
}

// Logger provides structured logging for a component
type Logger struct {
	prefix string
}

// NewLogger creates a new logger with a prefix
func NewLogger(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

// Info logs an informational message with key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV(zerolog.InfoLevel, msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV(zerolog.WarnLevel, msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV(zerolog.ErrorLevel, msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithKV(zerolog.DebugLevel, msg, keysAndValues...)
}

func (l *Logger) logWithKV(level zerolog.Level, msg string, keysAndValues ...interface{}) {
	mu.RLock()
	zl := base
	mu.RUnlock()

	evt := zl.WithLevel(level)
	if evt == nil {
		return
	}
	evt = evt.Str("component", l.prefix)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		switch v := keysAndValues[i+1].(type) {
		case error:
			evt = evt.AnErr(key, v)
		case time.Duration:
			evt = evt.Dur(key, v)
		default:
			evt = evt.Interface(key, v)
		}
	}
	evt.Msg(msg)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
