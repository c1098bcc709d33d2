package computer

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger creates a console logger at the given level, tagged as coming
// from bedrock.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("lib", "bedrock").
		Logger()
}

// LogLevelFromString parses a level name case-insensitively.
func LogLevelFromString(levelStr string) (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
}

// LevelForVerbosity maps a repeated -v count onto a level. No flags means
// warnings only; each one lowers the level a step, bottoming out at trace.
func LevelForVerbosity(verbose int) zerolog.Level {
	switch {
	case verbose <= 0:
		return zerolog.WarnLevel
	case verbose == 1:
		return zerolog.InfoLevel
	case verbose == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
