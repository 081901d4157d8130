package slogutil

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)

	r := slog.NewRecord(time.Date(2024, 3, 1, 12, 0, 0, 5e6, time.UTC), slog.LevelWarn, "Synthesis dead end", 0)
	r.AddAttrs(slog.String("cluster", "4"), slog.Int("pairs", 12), slog.Bool("noise", false), slog.Duration("took", 1500*time.Millisecond))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	want := "2024-03-01T12:00:00.005Z [warn] Synthesis dead end | cluster=4 pairs=12 noise=false took=1.5s\n"
	if buf.String() != want {
		t.Errorf("line = %q, want %q", buf.String(), want)
	}
}

func TestHandler_NoAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, nil)

	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "Run complete", 0)
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if buf.String() != "[info] Run complete\n" {
		t.Errorf("line = %q", buf.String())
	}
}

func TestHandler_Levels(t *testing.T) {
	tests := []struct {
		min     slog.Level
		level   slog.Level
		want    string
		emitted bool
	}{
		{slog.LevelDebug, slog.LevelDebug, "[debug]", true},
		{slog.LevelDebug, slog.LevelInfo + 2, "[info]", true},
		{slog.LevelWarn, slog.LevelInfo, "[info]", false},
		{slog.LevelWarn, slog.LevelWarn, "[warn]", true},
		{slog.LevelWarn, slog.LevelError + 4, "[error]", true},
		{Silent, slog.LevelError, "[error]", false},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, tt.min).Log(context.Background(), tt.level, "msg")

			if got := strings.Contains(buf.String(), tt.want); got != tt.emitted {
				t.Errorf("min %v level %v: output %q, want emitted=%v", tt.min, tt.level, buf.String(), tt.emitted)
			}
		})
	}
}

func TestHandler_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("Cannot record run", "error", errors.New("disk full"))

	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("expected quoted error, got: %s", buf.String())
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{" Warn ", slog.LevelWarn},
		{"info+2", slog.LevelInfo + 2},
		{"unknown", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := LevelFromString(tt.input)
			if got != tt.expected {
				t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		expected  slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{3, false, slog.LevelDebug},
		{0, true, Silent},
		{5, true, Silent}, // quiet overrides verbosity
	}

	for _, tt := range tests {
		got := LevelFromVerbosity(tt.verbosity, tt.quiet)
		if got != tt.expected {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v",
				tt.verbosity, tt.quiet, got, tt.expected)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not enable any level")
	}
	logger.Error("dropped")
}

func TestHandler_QuotesPasswords(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Synthesis dead end", "representative", "pass word", "password", "ab\xff", "plain", "abc")

	output := buf.String()
	for _, want := range []string{`representative="pass word"`, `password="ab\xff"`, "plain=abc"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("method", "hac").WithGroup("chunk").With("index", 3)

	logger.Info("Chunk done", "pairs", 10, slog.Group("matrix", "size", 4))

	if !strings.Contains(buf.String(), "chunk.index=3") {
		t.Errorf("expected grouped key, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "| method=hac chunk.index=3 chunk.pairs=10 chunk.matrix.size=4") {
		t.Errorf("expected grouped record attrs, got: %s", buf.String())
	}
}

func TestSetup(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "ruleforge.log")

	logger, closer, err := Setup(&stderr, Options{Format: "json", Level: slog.LevelInfo, File: path})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("Run started", "method", "hac")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !strings.Contains(stderr.String(), `"method":"hac"`) {
		t.Errorf("stderr should carry JSON record, got: %s", stderr.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "Run started") {
		t.Errorf("log file should carry record, got: %s", data)
	}

	if _, _, err := Setup(&stderr, Options{Format: "xml"}); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestTeeLogger(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewTeeLogger(
		NewHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	).With("wordlist", "rockyou.txt")

	logger.Debug("Built distance matrix", "size", 3)
	logger.Warn("Wordlist is empty")

	if strings.Contains(console.String(), "Built distance matrix") {
		t.Error("console should drop debug records")
	}
	if !strings.Contains(console.String(), "[warn] Wordlist is empty | wordlist=rockyou.txt") {
		t.Errorf("console = %q", console.String())
	}
	if got := strings.Count(file.String(), `"wordlist":"rockyou.txt"`); got != 2 {
		t.Errorf("file should carry both records, got %d: %s", got, file.String())
	}
}
