package slogobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatText is human-readable key=value output.
	FormatText Format = "text"
	// FormatJSON is one JSON object per line, for log collectors.
	FormatJSON Format = "json"
)

// Option is a functional option for configuring the Observer.
type Option func(*config)

type config struct {
	format Format
	level  slog.Level
	output io.Writer
	logger *slog.Logger // if set, used directly and the other fields are ignored
}

// WithFormat sets the log output format.
func WithFormat(format Format) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithOutput sets the output writer for logs.
func WithOutput(output io.Writer) Option {
	return func(c *config) {
		c.output = output
	}
}

// WithLogger uses an existing slog.Logger instead of building one from the
// format/level/output options. Takes precedence over the other options.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// formatFromEnv reads LISTING_LOG_FORMAT ("text" or "json"), defaulting to text.
func formatFromEnv() Format {
	switch strings.ToLower(os.Getenv("LISTING_LOG_FORMAT")) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// levelFromEnv reads LISTING_LOG_LEVEL (trace/debug/info/warn/error),
// defaulting to info. "trace" maps below slog's debug level.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LISTING_LOG_LEVEL")) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func applyOptions(opts ...Option) *config {
	cfg := &config{
		format: formatFromEnv(),
		level:  levelFromEnv(),
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
