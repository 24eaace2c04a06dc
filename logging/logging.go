package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

// Options controls where log output goes and how much of it is kept
type Options struct {
	// Path of the log file; empty logs to stderr
	Path string
	// Debug enables debug-level entries
	Debug bool
	// RunID is attached to every entry when set
	RunID string
}

// Setup initializes the process-wide logger
func Setup(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	// Check if logger is already set up
	if isSetup {
		return nil
	}

	var out io.Writer = os.Stderr
	if opts.Path != "" {
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = f
	}

	level := slog.LevelInfo
	switch {
	case opts.Debug:
		level = slog.LevelDebug
	case opts.Path == "":
		// stderr is shared with command output
		level = slog.LevelWarn
	}
	l := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	if opts.RunID != "" {
		l = l.With("run", opts.RunID)
	}
	logger = l

	logger.Info(fmt.Sprintf("--- PhotoTagger log started at %s ---", time.Now().Format(time.RFC3339)))

	isSetup = true
	return nil
}

// CloseLogger closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if !isSetup {
		return
	}
	logger.Info(fmt.Sprintf("--- PhotoTagger log closed at %s ---", time.Now().Format(time.RFC3339)))
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	isSetup = false
}

// Logger returns the current structured logger
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// DebugLog logs a message if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// LogImageProcessed logs when an image is processed
func LogImageProcessed(path string, success bool, errMsg string) {
	if success {
		Logger().Info("processed", "path", path)
	} else {
		Logger().Warn("failed", "path", path, "error", errMsg)
	}
}
