// Package logging builds the zerolog logger used by the CLI, the store and
// the agent, and carries it through contexts. Valuation packages never log.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects the sinks and the rotation policy.
type LogConfig struct {
	Level      string
	Console    bool   // human-readable lines on stderr
	File       bool   // JSON lines in a rotated file
	FilePath   string
	MaxSize    int // megabytes per file
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig logs info and above to the console only.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		FilePath:   filepath.Join(home, ".config", "callput-engine", "logs", "callput.log"),
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     14,
	}
}

// NewLogger is NewLoggerWithConfig(DefaultLogConfig()).
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

var levelLabels = map[string]string{
	"trace": "\033[90mTRC\033[0m",
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
}

func consoleLevel(i interface{}) string {
	name, ok := i.(string)
	if !ok {
		return "???"
	}
	if label, ok := levelLabels[name]; ok {
		return label
	}
	return strings.ToUpper(name)
}

// NewLoggerWithConfig wires the configured sinks. The console goes to
// stderr so stdout carries only command output. A file sink whose
// directory cannot be created is skipped.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var sinks []io.Writer

	if cfg.Console {
		sinks = append(sinks, zerolog.ConsoleWriter{
			Out:         os.Stderr,
			TimeFormat:  time.RFC3339,
			FormatLevel: consoleLevel,
		})
	}

	if cfg.File && cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	out := io.Discard
	switch len(sinks) {
	case 0:
	case 1:
		out = sinks[0]
	default:
		out = zerolog.MultiLevelWriter(sinks...)
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithToken adds an option token id to the logger context.
func WithToken(logger zerolog.Logger, tokenID string) zerolog.Logger {
	return logger.With().Str("token_id", tokenID).Logger()
}

// WithInstrument adds an instrument name to the logger context.
func WithInstrument(logger zerolog.Logger, instrument string) zerolog.Logger {
	return logger.With().Str("instrument", instrument).Logger()
}

// WithOperation tags logger with the command or tool being run.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogValuation logs the valuation of one holding.
func LogValuation(logger zerolog.Logger, tokenID, mode string, pnl, roi float64) {
	logger.Debug().
		Str("event", "valuation").
		Str("token_id", tokenID).
		Str("mode", mode).
		Float64("pnl", pnl).
		Float64("roi", roi).
		Msg("Position valued")
}

// LogImport logs a market-data or settle-price import.
func LogImport(logger zerolog.Logger, kind string, rows int) {
	logger.Info().
		Str("event", "import").
		Str("kind", kind).
		Int("rows", rows).
		Msg("Data imported")
}

// LogToolCall logs an agent tool invocation.
func LogToolCall(logger zerolog.Logger, tool string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "tool_call").
		Str("tool", tool).
		Dur("duration", duration)

	if err != nil {
		event.Err(err).Msg("Tool call failed")
	} else {
		event.Msg("Tool call completed")
	}
}
