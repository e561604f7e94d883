// Lectern - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lectern

// Package logging holds the process logger.
//
// Components take a zerolog.Logger at construction and tag it with a
// "component" field. The process logger here serves cmd/server wiring,
// request-scoped lines through Ctx and the slog bridge handed to suture and
// watermill.
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	logging.Ctx(ctx).Warn().Err(err).Msg("request failed")
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and decoration of the process logger.
type Config struct {
	// Level is trace, debug, info, warn, error or disabled. Unknown is info.
	Level string

	// Format is json (default) or console.
	Format string

	Caller    bool
	Timestamp bool

	// Output defaults to stderr.
	Output io.Writer
}

var process atomic.Pointer[zerolog.Logger]

//nolint:gochecknoinits // lines logged before main configures logging still need a sink
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Init(Config{Timestamp: true})
}

// Init swaps in a logger built from cfg. Config reloads call it again.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	lc := zerolog.New(out).With()
	if cfg.Timestamp {
		lc = lc.Timestamp()
	}
	if cfg.Caller {
		lc = lc.Caller()
	}
	l := lc.Logger()
	process.Store(&l)
}

func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns a copy of the process logger.
func Logger() zerolog.Logger {
	return *process.Load()
}

// Debug starts a debug line.
func Debug() *zerolog.Event { return process.Load().Debug() }

// Info starts an info line.
func Info() *zerolog.Event { return process.Load().Info() }

// Warn starts a warning line.
func Warn() *zerolog.Event { return process.Load().Warn() }

// Error starts an error line.
func Error() *zerolog.Event { return process.Load().Error() }

// Fatal exits the process with status 1 once the line is written.
func Fatal() *zerolog.Event { return process.Load().Fatal() }
