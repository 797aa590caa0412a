package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service-wide logger. Production environments log JSON to
// stdout; anything else gets the human-readable console writer.
func New(env, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	var logger zerolog.Logger
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	return logger.With().
		Timestamp().
		Str("service", service).
		Logger()
}
