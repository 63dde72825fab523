package logging

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestValidLevel(t *testing.T) {
	assert.True(t, ValidLevel("debug"))
	assert.True(t, ValidLevel(" Warn "))
	assert.False(t, ValidLevel("verbose"))
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closer, err := Open(Config{Level: "info", Format: "json", Output: path}, io.Discard, io.Discard)
	require.NoError(t, err)

	logger.Info().Str("bundle", "Sci-Fi").Msg("reconciled")
	logger.Debug().Msg("hidden")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"bundle":"Sci-Fi"`)
	assert.Contains(t, string(b), `"message":"reconciled"`)
	assert.NotContains(t, string(b), "hidden")
	require.NoError(t, closer.Close())
}

func TestOpenStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer

	logger, _, err := Open(Config{Level: "info", Format: "json", Output: "stdout"}, &stdout, &stderr)
	require.NoError(t, err)
	logger.Info().Msg("to stdout")

	logger, _, err = Open(Config{Level: "info", Format: "json"}, &stdout, &stderr)
	require.NoError(t, err)
	logger.Info().Msg("to stderr")

	assert.Contains(t, stdout.String(), "to stdout")
	assert.NotContains(t, stdout.String(), "to stderr")
	assert.Contains(t, stderr.String(), "to stderr")
}

func TestOpenUnwritableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "run.log")
	_, _, err := Open(Config{Output: path}, io.Discard, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, FromContext(context.Background()).GetLevel())

	logger := NewWithWriter(Config{Level: "warn"}, io.Discard)
	ctx := WithLogger(context.Background(), logger)
	assert.Equal(t, zerolog.WarnLevel, FromContext(ctx).GetLevel())
}

func TestNewWithWriterFormats(t *testing.T) {
	var js bytes.Buffer
	logger := NewWithWriter(Config{Level: "info", Format: "auto"}, &js)
	logger.Info().Msg("hello")
	assert.True(t, strings.HasPrefix(js.String(), "{"), js.String())

	var console bytes.Buffer
	logger = NewWithWriter(Config{Level: "info", Format: "console"}, &console)
	logger.Info().Int("n", 3).Msg("hello")
	assert.False(t, strings.HasPrefix(console.String(), "{"))
	assert.Contains(t, console.String(), "hello")
	assert.Contains(t, console.String(), "n=")
}
