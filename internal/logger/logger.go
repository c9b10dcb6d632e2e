package logger

import (
	"io"
	"log/slog"
	"os"
)

var log = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func Init() {
	InitWithWriter(os.Stdout)
	log.Info("logger initialized")
}

// InitWithWriter points the JSON logger at w. Tests use it to capture events.
func InitWithWriter(w io.Writer) {
	log = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)
}

func Info(msg string, fields map[string]any) {
	log.Info(msg, attrs(fields)...)
}

func Warn(msg string, fields map[string]any) {
	log.Warn(msg, attrs(fields)...)
}

func Error(msg string, fields map[string]any) {
	log.Error(msg, attrs(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	log.Error(msg, append(attrs(fields), slog.Bool("fatal", true))...)
	os.Exit(1)
}

// Event records a named tracepoint (session transition, reconciliation
// outcome, guard decision).
func Event(name string, fields map[string]any) {
	log.Info(name, append(attrs(fields), slog.String("event", name))...)
}

func attrs(fields map[string]any) []any {
	out := make([]any, 0, len(fields))
	for k, v := range fields {
		out = append(out, slog.Any(k, v))
	}
	return out
}
