// Package logger builds the slog logger shared by every ftr component.
package logger

import (
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

// Options selects where and how much to log
type Options struct {
	// Level is a slog level name or number; empty means info
	Level string
	// Filename, when set, sends logs to a rotating file instead of stderr
	Filename string
	// Debug forces the debug level
	Debug bool
}

// New returns a logger for opts and the writer behind it when it must be closed
func New(opts Options) (*slog.Logger, io.Closer) {
	level := ParseLevel(opts.Level, slog.LevelInfo)
	if opts.Debug {
		level = slog.LevelDebug
	}

	if opts.Filename != "" {
		w := &lumberjack.Logger{
			Filename:   opts.Filename,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		h := slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true, Level: level})
		return slog.New(h), w
	}

	return slog.New(newStderrHandler(os.Stderr, level)), nil
}

func newStderrHandler(f *os.File, level slog.Level) slog.Handler {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return tint.NewHandler(f, &tint.Options{
			NoColor: runtime.GOOS == "windows",
			Level:   level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return a
			},
		})
	}
	return slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
}

// ParseLevel maps a level name or number to a slog level
func ParseLevel(value string, fallback slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	switch level {
	case "":
		return fallback
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}
	return fallback
}
