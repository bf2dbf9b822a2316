// Package logging holds the logger shared by the simulator and the cansim
// command. Library code that is not handed a logger writes through L.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(New("text", slog.LevelInfo, nil))
}

// L returns the shared logger. Until Set is called it writes text at info
// level to stderr.
func L() *slog.Logger { return current.Load() }

// Set installs l as the shared logger. A nil l is ignored.
func Set(l *slog.Logger) {
	if l == nil {
		return
	}
	current.Store(l)
}

// New builds a logger for w, or stderr if w is nil. Format "json" selects
// JSON records; anything else gives logfmt-style text.
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel accepts the --log-level names. The empty string means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
