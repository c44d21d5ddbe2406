// Package logging builds the zerolog loggers used by asmgen.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Verbosity selects how much is logged.
type Verbosity int

// The verbosity settings.
const (
	Silent Verbosity = iota
	Normal
	Verbose
)

// Level maps a verbosity to a zerolog level. Silent still lets warnings
// and errors through.
func (v Verbosity) Level() zerolog.Level {
	switch v {
	case Silent:
		return zerolog.WarnLevel
	case Verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a console logger tagged with the tool name.
func New(w io.Writer, v Verbosity, color bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    !color,
		TimeFormat: time.TimeOnly,
	}

	return zerolog.New(out).
		Level(v.Level()).
		With().
		Timestamp().
		Str("component", "asmgen").
		Logger()
}
