// Package logging builds the structured logger shared by the commands.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much is logged.
type Options struct {
	Level  string // debug, info, warn, error
	File   string // Rotated log file; empty logs to stderr.
	Prefix string
	JSON   bool
}

// New returns a logger writing to stderr, or to a size-rotated file when
// opts.File is set. An unrecognised level falls back to info.
func New(opts Options) *log.Logger {
	var w io.Writer = os.Stderr
	if opts.File != "" {
		w = RotatingWriter(opts.File)
	}
	return NewWithWriter(w, opts)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, opts Options) *log.Logger {
	lo := log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}
	if opts.JSON {
		lo.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, lo)
}

// RotatingWriter returns a lumberjack writer for path.
func RotatingWriter(path string) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    64, // MB
		MaxBackups: 5,
		MaxAge:     14,
		Compress:   true,
	}
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Discard returns a logger that writes nothing, for tests and library defaults.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
