package logger_test

import (
	"log/slog"
	"testing"

	"github.com/edgard/bymbot/internal/logger"
)

func TestTruncate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short ascii", input: "hello", maxLen: 10, expected: "hello"},
		{name: "cut ascii", input: "hello world", maxLen: 8, expected: "hello..."},
		{name: "cut runes", input: "今天天气不错我们出去玩", maxLen: 6, expected: "今天天..."},
		{name: "tiny limit", input: "abcdef", maxLen: 2, expected: "..."},
		{name: "empty", input: "", maxLen: 5, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := logger.Truncate(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := logger.ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
