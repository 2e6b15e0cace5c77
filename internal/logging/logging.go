// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvPrefix is the prefix for logging environment variables.
const EnvPrefix = "VOICEINK_NOTION"

// Options configures Setup.
type Options struct {
	// Level overrides the environment when non-empty.
	Level string
	// File, when set, receives a copy of the log output with rotation.
	File string
	// Stderr defaults to os.Stderr.
	Stderr io.Writer
}

// Level resolves the log level from explicit, then VOICEINK_NOTION_LOG_LEVEL,
// then LOG_LEVEL. Unknown values fall back to info.
func Level(explicit string) slog.Level {
	levelStr := explicit
	if levelStr == "" {
		v := viper.New()
		v.SetEnvPrefix(EnvPrefix)
		v.AutomaticEnv()
		levelStr = v.GetString("LOG_LEVEL")
	}
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid log level, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

// Setup builds a text logger, installs it as the slog default and returns it
// together with a function that closes the log file, if any.
func Setup(opts Options) (*slog.Logger, func() error) {
	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}

	closer := func() error { return nil }
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator.Close
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: Level(opts.Level)}))
	slog.SetDefault(logger)
	return logger, closer
}
