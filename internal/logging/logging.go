// Package logging builds the slog logger shared by the runner and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// TimeFormat renders log timestamps in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// New returns a text logger writing to w at Info level, or Debug level when
// verbose is set.
func New(w io.Writer, verbose bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: utcTime,
	}))
}

func utcTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(TimeFormat))
	}
	return a
}
