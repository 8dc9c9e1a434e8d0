package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. dev gets a human readable console writer,
// every other env gets JSON lines with caller info.
func New(service, env, level string) zerolog.Logger {
	return newWithWriter(os.Stdout, service, env, level)
}

func newWithWriter(out io.Writer, service, env, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}
