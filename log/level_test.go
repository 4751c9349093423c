package log

import (
	"log/slog"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{DEBUG, "DEBUG"},
		{INFO, "INFO"},
		{WARN, "WARN"},
		{ERROR, "ERROR"},
		{LogLevel(99), "LEVEL(99)"},
	}
	for _, tt := range tests {
		got := tt.level.String()
		if got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(tt.level), got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DEBUG},
		{"debug", DEBUG},
		{"INFO", INFO},
		{"info", INFO},
		{"WARN", WARN},
		{"warn", WARN},
		{"WARNING", WARN},
		{"ERROR", ERROR},
		{"error", ERROR},
		{"  info  ", INFO},
		{"garbage", INFO},
		{"", INFO},
	}
	for _, tt := range tests {
		got := LevelFromString(tt.input)
		if got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogLevel_ToSlog(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  slog.Level
	}{
		{DEBUG, slog.LevelDebug},
		{INFO, slog.LevelInfo},
		{WARN, slog.LevelWarn},
		{ERROR, slog.LevelError},
		{LogLevel(99), slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.level.ToSlog(); got != tt.want {
			t.Errorf("%v.ToSlog() = %v, want %v", tt.level, got, tt.want)
		}
	}
}
