// Package rlog provides the structured logging facade used by every other
// package in this module: a thin naming/construction layer over
// github.com/joeycumines/logiface fronting github.com/joeycumines/izerolog
// (rs/zerolog), following the fluent Builder/Context pattern the teacher
// uses throughout (logiface-slog/http_middleware_example.go's
// `logger.Info().Str(...).Log(...)`).
package rlog

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Logger is the type every RLC-AM/PDCP entity logs through.
type Logger = logiface.Logger[*izerolog.Event]

// New constructs a root Logger writing JSON lines to w at the given level.
func New(w io.Writer, level logiface.Level) *Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return izerolog.L.New(
		izerolog.L.WithZerolog(zl),
		izerolog.L.WithLevel(level),
	)
}

// Default constructs a root Logger writing to os.Stderr at Informational
// level, for callers (e.g. quick test harnesses) that don't need a custom
// sink.
func Default() *Logger {
	return New(os.Stderr, logiface.LevelInformational)
}

// ForBearer derives a child logger for one bearer, tagging every entry
// with the structured fields "component" (e.g. "rlc-am" or "pdcp") and
// "lcid".
func ForBearer(parent *Logger, component string, lcid uint16) *Logger {
	return parent.Clone().
		Str("component", component).
		Uint64("lcid", uint64(lcid)).
		Logger()
}
