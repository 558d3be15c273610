package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const LevelKey = "LOG_LEVEL"
const FormatKey = "LOG_FORMAT"

// Level is the current log level of Default. To change the level at runtime, for example to DEBUG, call Level.Set(slog.LevelDebug)
// Defaults to slog.LevelInfo
var Level = new(slog.LevelVar)

// Default is a *slog.Logger writing to stderr with a level set by environment variable LOG_LEVEL.
// stdout is reserved for the task ARNs and the final summary line so that pipelines can consume them.
//
// The handler is JSON unless LOG_FORMAT is set to "text".
var Default *slog.Logger

func init() {
	configureLogging(os.Stderr)
}

// configureLogging separated out from init() for testing with environment variables
func configureLogging(w io.Writer) {
	if envLogLevel, levelIsSet := os.LookupEnv(LevelKey); levelIsSet {
		if len(envLogLevel) == 0 {
			slog.Warn("LOG_LEVEL is set, but is empty")
		} else {
			var level slog.Level
			if err := level.UnmarshalText([]byte(envLogLevel)); err != nil {
				slog.Error("error unmarshalling LOG_LEVEL value",
					slog.String(LevelKey, envLogLevel),
					slog.Any("error", err))
				level = slog.LevelInfo
			}
			Level.Set(level)
		}
	} // and if !levelIsSet we just use the default value, so nothing to do.
	slog.SetDefault(slog.New(newHandler(w, os.Getenv(FormatKey))))
	slog.Debug("default log level set", slog.String("logging.Level", Level.String()))
	Default = slog.Default()
}

func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: Level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
