package main

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  slog.Level
	}{
		{name: "unset defaults to debug", value: "", want: slog.LevelDebug},
		{name: "explicit true", value: "true", want: slog.LevelDebug},
		{name: "false quiets to info", value: "false", want: slog.LevelInfo},
		{name: "numeric false", value: "0", want: slog.LevelInfo},
		{name: "garbage keeps default", value: "loud", want: slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEBUG", tt.value)
			if got := logLevel(); got != tt.want {
				t.Errorf("logLevel() with DEBUG=%q = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
