// Package telemetry wires the ambient logging and metrics of a scan.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogConfig selects the log level and encoding.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string

	// Format is "json" or "console". Empty means console.
	Format string

	// Output defaults to os.Stderr so reports on stdout stay parseable.
	// Console output is colored only when writing to a file.
	Output io.Writer
}

// NewLogger builds a zerolog logger from cfg.
func NewLogger(cfg LogConfig) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	switch strings.ToLower(cfg.Format) {
	case "", "console":
		_, tty := w.(*os.File)
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !tty}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel maps a level name onto a zerolog level.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}
