// Package logging builds the slog loggers used across custodia.
//
// Records are rendered by charmbracelet/log and always pass through
// SanitizingHandler first, so private keys, passcodes, tokens and signatures
// never reach an output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// New returns a logger writing to w at level ("debug", "info", "warn", "error")
// in format ("text", "json", "logfmt").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl := charmlog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := charmlog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var formatter charmlog.Formatter
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		formatter = charmlog.TextFormatter
	case "json":
		formatter = charmlog.JSONFormatter
	case "logfmt":
		formatter = charmlog.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: true,
	})
	return slog.New(WrapHandler(handler)), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
