package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Options selects the handler built by New.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	// Verbose forces debug output regardless of Level.
	Verbose bool
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// New builds a logger writing to w. It does not touch slog.Default.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if opts.Verbose {
		handlerOpts.Level = slog.LevelDebug
	}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
