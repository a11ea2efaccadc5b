package logger

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

// Init configures structured JSON logging for the process.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

func get() *slog.Logger {
	if Logger == nil {
		return slog.Default()
	}
	return Logger
}
