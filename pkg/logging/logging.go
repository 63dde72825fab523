// Package logging builds zerolog loggers for the bundlelib tools.
//
// Libraries in this module never log through a global: they take a
// zerolog.Logger (default zerolog.Nop()) or pull one from a context with
// FromContext.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	Level string `mapstructure:"level"`

	// Format is console, json, or auto (console when Output is a terminal).
	Format string `mapstructure:"format"`

	// Output is stderr, stdout, discard, or a file path.
	Output string `mapstructure:"output"`
}

// DefaultConfig returns info-level auto-format logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "auto", Output: "stderr"}
}

// Open creates a logger from cfg. stdout and stderr back the "stdout" and
// "stderr" outputs; any other Output is a file opened for append, which the
// caller closes through the returned io.Closer.
func Open(cfg Config, stdout, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	out, closer, err := output(cfg.Output, stdout, stderr)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}
	return NewWithWriter(cfg, out), closer, nil
}

// NewWithWriter builds a logger writing to out; cfg.Output is ignored.
func NewWithWriter(cfg Config, out io.Writer) zerolog.Logger {
	level := ParseLevel(cfg.Level)

	logger := zerolog.New(formatted(out, cfg.Format)).
		Level(level).
		With().
		Timestamp().
		Logger()

	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func output(name string, stdout, stderr io.Writer) (io.Writer, io.Closer, error) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return stderr, nopCloser{}, nil
	case "stdout":
		return stdout, nopCloser{}, nil
	case "discard", "none":
		return io.Discard, nopCloser{}, nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output %s: %w", name, err)
	}
	return f, f, nil
}

func formatted(out io.Writer, format string) io.Writer {
	format = strings.ToLower(format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = "console"
		}
	}

	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return out
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "none", "off":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// ValidLevel reports whether level is a name ParseLevel understands.
func ValidLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "none", "off":
		return true
	}
	return false
}

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}
