// Package logging builds the slog logger shared by mimir's packages.
// Records go to stderr through a charmbracelet/log handler so they never mix
// with the answer written to stdout.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

type config struct {
	debug  bool
	json   bool
	writer io.Writer
}

// Option configures a logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug when true.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.debug = debug
	}
}

// WithJSON switches to JSON lines instead of the human-friendly format.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter overrides the output writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// New returns a *slog.Logger backed by charmbracelet/log.
func New(opts ...Option) *slog.Logger {
	c := &config{writer: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}

	level := log.InfoLevel
	if c.debug {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(c.writer, log.Options{
		Level:           level,
		Prefix:          "mimir",
		ReportTimestamp: c.debug,
		TimeFormat:      time.TimeOnly,
	})
	if c.json {
		handler.SetFormatter(log.JSONFormatter)
	}

	return slog.New(handler)
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
