package slogx

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, parseLevel(tt.in), "level %q", tt.in)
	}
}

func TestNew_DevDefaultsToText(t *testing.T) {
	logger := New(Config{Service: "till-auth", Env: "dev"})

	_, ok := logger.Handler().(*slog.TextHandler)
	require.True(t, ok, "dev without an explicit format should log text")
}

func TestNew_ProdDefaultsToJSON(t *testing.T) {
	logger := New(Config{Service: "till-auth", Env: "prod"})

	_, ok := logger.Handler().(*slog.JSONHandler)
	require.True(t, ok)
}

func TestNew_ExplicitFormatWins(t *testing.T) {
	logger := New(Config{Service: "till-auth", Env: "dev", Format: "json"})

	_, ok := logger.Handler().(*slog.JSONHandler)
	require.True(t, ok, "an explicit format overrides the env default")
}
