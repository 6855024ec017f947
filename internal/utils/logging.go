package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LoggerOptions configures InitLogger. Output defaults to os.Stderr.
type LoggerOptions struct {
	Level           string
	Output          io.Writer
	Prefix          string
	ReportTimestamp bool
}

// InitLogger builds a charmbracelet/log logger from opts.
func InitLogger(opts LoggerOptions) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger := log.NewWithOptions(out, log.Options{
		Level:           parseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
	})
	return logger
}

// parseLevel maps a case-insensitive level name to a log.Level,
// defaulting to InfoLevel for anything unrecognized rather than erroring
// — a malformed DCG_LOG_LEVEL shouldn't prevent the hook from running.
func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// InitDefaultLogger builds the package-level default logger from the
// DCG_LOG_LEVEL environment variable, writing to stderr with a
// timestamp (spec.md §1 excludes logging sinks from scope, but every
// invocation still needs somewhere to put its own diagnostics).
func InitDefaultLogger() *log.Logger {
	return InitLogger(LoggerOptions{
		Level:           os.Getenv("DCG_LOG_LEVEL"),
		Output:          os.Stderr,
		ReportTimestamp: true,
	})
}

// InitMCPServerLogger opens (creating if necessary) a persistent log
// file for `dcg mcp serve`, the one dcg process that runs long enough
// for a rotating stderr stream to be useless — everything else is a
// one-shot hook invocation whose stderr is already the right sink.
func InitMCPServerLogger() (*log.Logger, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "dcg")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, "mcp.log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return InitLogger(LoggerOptions{
		Level:           os.Getenv("DCG_LOG_LEVEL"),
		Output:          f,
		Prefix:          "mcp",
		ReportTimestamp: true,
	}), nil
}

// InitRequestLogger opens a per-invocation log file under
// projectDir/.dcg/logs/<requestID>.log, for diagnosing a
// single hook call without polluting the hook's own stdout/stderr
// contract (spec.md §6 fixes what goes on those streams).
func InitRequestLogger(projectDir, requestID string) (*log.Logger, error) {
	dir := filepath.Join(projectDir, ".dcg", "logs")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, requestID+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return InitLogger(LoggerOptions{
		Level:           os.Getenv("DCG_LOG_LEVEL"),
		Output:          f,
		Prefix:          requestID,
		ReportTimestamp: true,
	}), nil
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   = InitDefaultLogger()
)

// GetDefaultLogger returns the package-level default logger.
func GetDefaultLogger() *log.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the package-level default logger.
func SetDefaultLogger(l *log.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = l
}

// Debug logs at debug level through the default logger.
func Debug(msg any, keyvals ...any) { GetDefaultLogger().Debug(msg, keyvals...) }

// Info logs at info level through the default logger.
func Info(msg any, keyvals ...any) { GetDefaultLogger().Info(msg, keyvals...) }

// Warn logs at warn level through the default logger.
func Warn(msg any, keyvals ...any) { GetDefaultLogger().Warn(msg, keyvals...) }

// Error logs at error level through the default logger.
func Error(msg any, keyvals ...any) { GetDefaultLogger().Error(msg, keyvals...) }

// With returns a sub-logger of the default logger carrying keyvals.
func With(keyvals ...any) *log.Logger { return GetDefaultLogger().With(keyvals...) }

// WithPrefix returns a sub-logger of the default logger carrying prefix.
func WithPrefix(prefix string) *log.Logger { return GetDefaultLogger().WithPrefix(prefix) }
