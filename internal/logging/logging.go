// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the application-wide logger. Component packages derive a child
// logger from it via Component(name) rather than constructing their own.
var Log zerolog.Logger

func init() {
	Log = New()
}

// New builds a zerolog.Logger honoring LOG_LEVEL (debug|info|warn|error,
// default info). Output is JSON to stdout, duplicated to agentgw.log when
// that file can be opened.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level := zerolog.InfoLevel
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); v != "" {
		if parsed, err := zerolog.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	var w io.Writer = os.Stdout
	if logFile, err := os.OpenFile("agentgw.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
		w = io.MultiWriter(os.Stdout, logFile)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
