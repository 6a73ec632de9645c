package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely the process logs.
type Options struct {
	Env string

	// File is an optional path for a size-rotated copy of the log stream.
	// The softphone runs unattended on a device, so its log is kept on disk as well.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

var rotating *lumberjack.Logger

// New returns a production-friendly structured logger.
// No business logic should depend on logging implementation details.
func New(appEnv string) *slog.Logger {
	return NewWithOptions(Options{Env: appEnv})
}

// NewWithOptions is New plus an optional rotating log file.
func NewWithOptions(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Env == "local" || opts.Env == "dev" {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 50
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 2
		}
		rotating = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		w = io.MultiWriter(os.Stdout, rotating)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ShutdownFlush closes the rotating log file, if one was opened.
func ShutdownFlush(_ context.Context, _ time.Duration) error {
	if rotating == nil {
		return nil
	}
	return rotating.Close()
}
