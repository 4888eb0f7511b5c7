package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// Global logger instance
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	// Log file handle
	logFile *os.File
)

// ParseLevel maps a config level name to a slog level. Unknown names map to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the logger with the given configuration
func InitLogger(logPath string, logLevel string) error {
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	// If no log path specified, use stderr
	if logPath == "" {
		CloseLogger()
		setLogger(slog.New(slog.NewTextHandler(os.Stderr, opts)))
		return nil
	}

	// Create log directory if it doesn't exist
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	CloseLogger()
	logFile = file

	multiWriter := io.MultiWriter(os.Stderr, file)
	setLogger(slog.New(slog.NewTextHandler(multiWriter, opts)))

	return nil
}

// SetOutput replaces the logger with one writing to w, closing any log file.
func SetOutput(w io.Writer, logLevel string) {
	CloseLogger()
	setLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(logLevel)})))
}

func setLogger(l *slog.Logger) {
	logger = l
	slog.SetDefault(l)
}

// CloseLogger closes the log file if open
func CloseLogger() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// L returns the process logger.
func L() *slog.Logger {
	return logger
}
