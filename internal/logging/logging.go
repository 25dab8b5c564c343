// Package logging builds the server logger. Stdout carries the wire
// protocol, so log output goes to stderr or to a file, never to stdout.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options control logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File, when set, receives log output instead of stderr.
	File string
}

// New constructs a logger per the options. The returned closer is non-nil
// when a log file was opened; callers should close it on shutdown.
func New(opts Options) (*log.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = f
		closer = f
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	logger.SetLevel(parseLevel(opts.Level))
	return logger, closer, nil
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
