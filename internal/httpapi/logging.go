package httpapi

import (
	"os"

	"github.com/rs/zerolog"
)

// zlog is the package logger. Replace it with SetLogger to route API
// logs into the process-wide logger.
var zlog = zerolog.New(os.Stderr).With().Timestamp().Str("component", "httpapi").Logger()

// SetLogger replaces the package logger used by the HTTP handlers.
func SetLogger(l zerolog.Logger) { zlog = l }
