// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely logs are written.
type Options struct {
	Level string // debug | info | warn | error
	File  string // rotating log file; empty disables file output
}

// New returns a JSON logger writing to stderr and, when File is set, to a rotating file.
// The returned closer flushes and closes the file writer.
func New(opts Options) (*slog.Logger, io.Closer) {
	writers := []io.Writer{os.Stderr}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100, // MB
			MaxAge:     7,
			MaxBackups: 3,
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	return NewWithWriter(io.MultiWriter(writers...), opts.Level), closer
}

// NewWithWriter returns a JSON logger writing to w.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a level name to slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
