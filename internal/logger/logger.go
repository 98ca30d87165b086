package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Log zerolog.Logger

func init() {
	// Console output with colors, same format for every package
	Log = newConsoleLogger(os.Stderr, false)

	// Set default log level to Info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func newConsoleLogger(out io.Writer, noColor bool) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// SetLevel sets the global log level
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetOutput redirects the logger, e.g. to a file when stderr belongs to the console UI
func SetOutput(out io.Writer) {
	Log = newConsoleLogger(out, out != os.Stderr)
}

// Configure applies a textual log level such as "debug" or "warn"
func Configure(level string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		return nil
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	SetLevel(parsed)
	return nil
}
