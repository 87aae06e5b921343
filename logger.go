package callrtc

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog"
)

var (
	// defaultLoggerImpl is a zerolog instance with console writer
	defaultLoggerImpl = zerolog.New(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		color, _ := strconv.ParseBool(os.Getenv("DEBUG_COLORS"))
		w.NoColor = !color
		w.TimeFormat = "2006-01-02 15:04:05.999"
	})).With().Timestamp().Logger()

	// DefaultLoggerLevel is the level of scopes not selected by DEBUG.
	DefaultLoggerLevel = zerolog.InfoLevel

	// NewLogger creates the logger of a scope, e.g. "ConnectionFSM" or "Actor/connection-fsm-worker".
	// DEBUG holds comma separated glob patterns of scopes to log at debug level, a leading "-"
	// excludes matching scopes. It may be replaced to route every scope elsewhere.
	NewLogger = func(scope string) logr.Logger {
		level := DefaultLoggerLevel

		if debugEnabled(os.Getenv("DEBUG"), scope) {
			level = zerolog.DebugLevel
		}

		logger := defaultLoggerImpl.Level(level)

		return zerologr.New(&logger).WithName(scope)
	}
)

func init() {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.999Z07:00"
	zerologr.VerbosityFieldName = ""
}

func debugEnabled(debug, scope string) (enabled bool) {
	for _, part := range strings.Split(debug, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}
		match := true
		if part[0] == '-' {
			match = false
			part = part[1:]
		}
		if g, err := glob.Compile(part); err == nil && g.Match(scope) {
			enabled = match
		}
	}
	return
}
