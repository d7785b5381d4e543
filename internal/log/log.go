// Package log builds the slog handlers used by the simforms commands.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

const (
	JSONFormat   = "json"
	TextFormat   = "text"
	LogfmtFormat = "logfmt"
)

// DefaultFormat returns text when f is a terminal and json otherwise.
func DefaultFormat(f *os.File) string {
	if f != nil && isatty.IsTerminal(f.Fd()) {
		return TextFormat
	}
	return JSONFormat
}

// CreateHandler creates a [slog.Handler] writing to w. An empty format picks
// [DefaultFormat] for stderr.
func CreateHandler(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	level, err := GetLevel(logLevel)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(logFormat))
	if format == "" {
		format = DefaultFormat(os.Stderr)
	}

	var formatter charmlog.Formatter
	switch format {
	case JSONFormat:
		formatter = charmlog.JSONFormatter
	case LogfmtFormat:
		formatter = charmlog.LogfmtFormatter
	case TextFormat:
		formatter = charmlog.TextFormatter
	default:
		return nil, fmt.Errorf("log: unknown format %q", logFormat)
	}

	return charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}), nil
}

// GetLevel parses a level name. An empty name selects info.
func GetLevel(level string) (charmlog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		return charmlog.ErrorLevel, nil
	case "warn", "warning":
		return charmlog.WarnLevel, nil
	case "info", "":
		return charmlog.InfoLevel, nil
	case "debug", "trace":
		return charmlog.DebugLevel, nil
	default:
		return charmlog.InfoLevel, fmt.Errorf("log: unknown level %q", level)
	}
}
