// Package logging builds the process-wide zerolog.Logger used throughout
// the server.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New returns a configured zerolog.Logger: a colored ConsoleWriter for an
// interactive terminal, and the level parsed from levelName (defaulting to
// info on an unrecognized value).
func New(levelName string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(levelName)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(out).With().Timestamp().Logger()
}
