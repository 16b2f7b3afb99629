package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	mu           sync.RWMutex
	currentLevel LogLevel
	logger       *slog.Logger
	levelOnce    sync.Once
)

// initLevel initializes the log level from environment variables and
// installs the default stderr handler.
func initLevel() {
	levelOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		currentLevel = levelFromEnv()
		logger = newLogger(os.Stderr)
	})
}

func levelFromEnv() LogLevel {
	// DEBUG wins over LOG_LEVEL
	if debug := os.Getenv("DEBUG"); debug != "" {
		switch strings.ToLower(debug) {
		case "1", "true", "yes", "on":
			return LevelDebug
		}
	}

	level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		return LevelInfo
	}
	return level
}

// ParseLevel converts a level name into a LogLevel. The boolean is false
// for empty or unknown names.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// newLogger builds a tint handler; colour is only enabled when w is a terminal.
func newLogger(w io.Writer) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		noColor = false
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}))
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	initLevel()
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

// SetLevel overrides the level read from the environment.
func SetLevel(level LogLevel) {
	initLevel()
	mu.Lock()
	defer mu.Unlock()
	currentLevel = level
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	mu.RLock()
	defer mu.RUnlock()
	return currentLevel
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

func emit(level LogLevel, slogLevel slog.Level, format string, args ...interface{}) {
	if GetLevel() > level {
		return
	}
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Log(context.Background(), slogLevel, fmt.Sprintf(format, args...))
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	emit(LevelDebug, slog.LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	emit(LevelInfo, slog.LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	emit(LevelWarn, slog.LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	emit(LevelError, slog.LevelError, format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	initLevel()
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Error("FATAL: " + fmt.Sprintf(format, args...))
	os.Exit(1)
}

// Printf writes a message regardless of the configured level.
func Printf(format string, args ...interface{}) {
	initLevel()
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Info(fmt.Sprintf(format, args...))
}

// Println is the Println flavour of Printf.
func Println(args ...interface{}) {
	Printf("%s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
