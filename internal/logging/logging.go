// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds a logger writing human-readable lines to stderr and, when file is
// not empty, JSON lines appended to file. It also becomes the global logger.
// The returned closer releases the log file.
func New(level, file string) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(console, f)
		closer = f
	}

	// Camera loops log from their own goroutines
	logger := zerolog.New(zerolog.SyncWriter(out)).Level(lvl).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// ForCamera derives the logger used by one camera loop.
func ForCamera(parent zerolog.Logger, camera string) zerolog.Logger {
	return parent.With().Str("camera", camera).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
