package logger

import (
	"io"
	"log/slog"
	"os"
)

var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init installs the process logger. Verbose or DEBUG=true switch to debug level.
func Init(verbose bool) {
	level := slog.LevelInfo
	if verbose || os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	Logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(Logger)
}

// With returns a logger tagged with the component name.
func With(component string) *slog.Logger {
	return Logger.With("component", component)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
