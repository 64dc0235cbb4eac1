// Package logging builds the process logger. The logger is constructed once
// by the command entrypoint and passed into every component; nothing in the
// repository logs through a global.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Options select the log threshold and destination for one invocation.
type Options struct {
	Verbose bool   // log at debug level
	Quiet   bool   // log warnings and errors only
	Level   string // fallback level name from config; empty means info
	Output  io.Writer
}

// New builds a console logger writing to opts.Output.
//
// Level precedence, highest first: --verbose, --quiet, the configured level,
// info. The verbose and quiet flags are mutually exclusive at the CLI layer,
// so both being set is not handled here.
func New(opts Options) zerolog.Logger {
	w := zerolog.ConsoleWriter{
		Out:        opts.Output,
		TimeFormat: "2006-01-02T15:04:05",
		NoColor:    true,
	}
	return zerolog.New(w).Level(level(opts)).With().Timestamp().Logger()
}

func level(opts Options) zerolog.Level {
	switch {
	case opts.Verbose:
		return zerolog.DebugLevel
	case opts.Quiet:
		return zerolog.WarnLevel
	}
	if opts.Level != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			return lvl
		}
	}
	return zerolog.InfoLevel
}
