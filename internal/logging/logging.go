// Package logging wires storax's process-wide structured logger. Every
// component logs through log/slog; this package only decides the handler
// and sink, following the teacher's charmbracelet/log-backed slog setup.
package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Options configures the logger returned by New.
type Options struct {
	Level  slog.Level
	Writer io.Writer
	// ReportCaller adds file:line to each log line; useful in --debug mode.
	ReportCaller bool
}

// Option mutates Options.
type Option func(*Options)

func WithLevel(l slog.Level) Option {
	return func(o *Options) { o.Level = l }
}

func WithWriter(w io.Writer) Option {
	return func(o *Options) { o.Writer = w }
}

func WithCaller(report bool) Option {
	return func(o *Options) { o.ReportCaller = report }
}

func defaultOptions() *Options {
	return &Options{
		Level:  slog.LevelInfo,
		Writer: os.Stderr,
	}
}

// New builds a slog.Logger backed by a charmbracelet/log handler.
func New(opts ...Option) *slog.Logger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	handler := charmlog.NewWithOptions(o.Writer, charmlog.Options{
		Level:           toCharmLevel(o.Level),
		ReportCaller:    o.ReportCaller,
		ReportTimestamp: true,
	})

	return slog.New(handler)
}

// Init builds a logger per opts and installs it as slog's process-wide
// default, the way every storax component (lock manager, journal, trash
// manager, copy engine, ...) expects to find one via slog.Info/Debug/Warn.
func Init(opts ...Option) *slog.Logger {
	l := New(opts...)
	slog.SetDefault(l)
	return l
}

func toCharmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l <= slog.LevelInfo:
		return charmlog.InfoLevel
	case l <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
