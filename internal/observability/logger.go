package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// InitLogger builds the process logger and installs it as zerolog's global logger.
// Unknown levels fall back to info, unknown formats to console.
func InitLogger(app, level, format string) zerolog.Logger {
	return initLogger(os.Stderr, app, level, format)
}

func initLogger(out io.Writer, app, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
