package logger

import (
	"github.com/rs/zerolog"

	"github.com/aleister1102/eventextract/internal/config"
)

// New creates the process logger from the log config section.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewLoggerBuilder().
		WithConfig(cfg).
		WithService("eventextract").
		Build()
}

// ForRequest returns a child logger carrying the request correlation fields.
func ForRequest(base zerolog.Logger, requestID, url string) zerolog.Logger {
	return base.With().
		Str("request_id", requestID).
		Str("url", url).
		Logger()
}
