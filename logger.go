package jungledb

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging sets up the default slog logger with a text handler
// writing to stdout, leveled from the JUNGLEDB_LOG_LEVEL environment
// variable (DEBUG, WARN, ERROR; defaults to INFO). Applications embed this
// module and are expected to call ConfigureLogging once at startup if they
// want this default configuration instead of their own.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)
	switch os.Getenv("JUNGLEDB_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// SetLogLevel overrides the level set by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
