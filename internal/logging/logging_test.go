package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"loud":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextLogger(t *testing.T) {
	if FromContext(context.Background()).GetLevel() != zerolog.Disabled {
		t.Error("empty context should give a disabled logger")
	}

	var buf strings.Builder
	logger := zerolog.New(&buf)
	ctx := WithLogger(context.Background(), WithOperation(logger, "pnl"))
	ctxLogger := FromContext(ctx)
	ctxLogger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"operation":"pnl"`) {
		t.Errorf("log line = %s", buf.String())
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "callput.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "debug",
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})
	LogImport(logger, "settle", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for _, want := range []string{`"kind":"settle"`, `"rows":3`, `"event":"import"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %s: %s", want, data)
		}
	}
}

func TestConsoleLevel(t *testing.T) {
	if got := consoleLevel("warn"); !strings.Contains(got, "WRN") {
		t.Errorf("warn label = %q", got)
	}
	if got := consoleLevel("panic"); got != "PANIC" {
		t.Errorf("unknown label = %q", got)
	}
	if got := consoleLevel(42); got != "???" {
		t.Errorf("non-string label = %q", got)
	}
}
