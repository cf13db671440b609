package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the daemon log.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of rotated files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the daemon's own log destination. Console output is
// always on; FilePath adds a rotated file copy with escape sequences
// stripped. Rotation parameters follow lumberjack semantics.
type Config struct {
	FilePath   string // empty disables file logging
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of rotated files to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // gzip rotated files
	Level      slog.Level
}

// Setup builds the daemon logger. The console stream keeps color; the
// file copy goes through a StripWriter so the log stays grep-friendly.
func (c Config) Setup() *slog.Logger {
	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		file := &lj.Logger{
			Filename:   c.FilePath,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		w = io.MultiWriter(os.Stderr, NewStripWriter(file))
	}
	opts := &slog.HandlerOptions{Level: c.Level}
	return slog.New(NewColorTextHandler(w, opts))
}

// FileWriter returns a rotated writer for the managed server's console
// log. The caller owns closing it.
func FileWriter(path string, maxBackups int) io.WriteCloser {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: valOr(maxBackups, DefaultMaxBackups),
		MaxAge:     DefaultMaxAgeDays,
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
