// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Setup configures the root logger. level is one of debug/info/warn/error;
// unknown values fall back to info. When pretty is true, output goes through
// a human-readable console writer instead of raw JSON.
func Setup(level string, pretty bool) {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}

	mu.Lock()
	root = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}

// For returns a sub-logger tagged with the given component name.
func For(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With().Str("component", component).Logger()
}
