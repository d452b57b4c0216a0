// Package logger is the application-wide structured logger.
//
// Call sites pass a message followed by alternating key/value pairs:
//
//	logger.Info("server starting", "address", addr)
//	logger.Error("failed to save profile", "scope", scope, "error", err)
//
// A bare error (or any value without a key) is still accepted and lands under
// the "error" / "arg" fields so older call sites keep working.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Init configures the global logger for the given environment.
// "development" and "local" get a human readable console writer at debug level,
// everything else gets JSON at info level.
func Init(environment string) {
	InitWithWriter(environment, os.Stderr)
}

// InitWithWriter is Init with an explicit output, used by tests and the CLI.
func InitWithWriter(environment string, out io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.MessageFieldName = "message"

	level := zerolog.InfoLevel
	var w io.Writer = out

	switch strings.ToLower(environment) {
	case "development", "local", "dev":
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	case "test":
		level = zerolog.WarnLevel
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lvl)); err == nil {
			level = parsed
		}
	}

	log = zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Logger returns a copy of the configured zerolog logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, args ...any) { emit(zerolog.DebugLevel, msg, args) }
func Info(msg string, args ...any)  { emit(zerolog.InfoLevel, msg, args) }
func Warn(msg string, args ...any)  { emit(zerolog.WarnLevel, msg, args) }
func Error(msg string, args ...any) { emit(zerolog.ErrorLevel, msg, args) }

// Fatal logs and exits the process.
func Fatal(msg string, args ...any) {
	emit(zerolog.FatalLevel, msg, args)
	os.Exit(1)
}

func emit(level zerolog.Level, msg string, args []any) {
	mu.RLock()
	l := log
	mu.RUnlock()

	// WithLevel never exits, Fatal does that itself.
	ev := l.WithLevel(level)
	if ev == nil {
		return
	}
	ev.Fields(toFields(args)).Msg(msg)
}

// toFields turns a key/value list into a field map.
func toFields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i++ {
		key, ok := args[i].(string)
		if !ok || i+1 >= len(args) {
			name := "arg"
			if _, isErr := args[i].(error); isErr {
				name = "error"
			}
			if _, taken := fields[name]; taken {
				name = fmt.Sprintf("%s_%d", name, i)
			}
			fields[name] = fieldValue(args[i])
			continue
		}
		fields[key] = fieldValue(args[i+1])
		i++
	}
	return fields
}

func fieldValue(v any) any {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}
