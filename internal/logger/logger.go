package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls log output destinations and format.
type Config struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file,omitempty" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
	Redact  bool   `json:"redact" mapstructure:"redact"`

	// MaxSizeMB is the file size threshold before rotation.
	MaxSizeMB int `json:"max_size_mb,omitempty" mapstructure:"max_size_mb"`
	// MaxAgeDays bounds how long rotated files are kept.
	MaxAgeDays int  `json:"max_age_days,omitempty" mapstructure:"max_age_days"`
	Compress   bool `json:"compress,omitempty" mapstructure:"compress"`
}

// DefaultConfig returns the logging defaults for the daemon.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Console:    true,
		Pretty:     true,
		Redact:     true,
		MaxSizeMB:  100,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Logger owns the configured zerolog instance and its file sink.
type Logger struct {
	logger zerolog.Logger
	sink   io.Closer
}

// New builds a logger from the config and installs it as the global
// zerolog logger. Unparseable levels fall back to info.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console {
		var console io.Writer = os.Stdout
		if cfg.Pretty {
			console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, console)
	}

	var sink io.Closer
	if cfg.File != "" {
		rw, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxAgeDays, cfg.Compress)
		if err != nil {
			return nil, err
		}
		writers = append(writers, rw)
		sink = rw
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	if cfg.Redact {
		writer = NewRedactor().Wrap(writer)
	}

	l := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	log.Logger = l

	return &Logger{logger: l, sink: sink}, nil
}

// Zerolog returns the configured logger for injection into components.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

// With opens a child logger context.
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// Close flushes and closes the file sink, if any.
func (l *Logger) Close() error {
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}
