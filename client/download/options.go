package download

import (
	"errors"
	"log/slog"
)

// Option configures a Meter.
//
// WithProgress registers a callback for every Progress event.
//
// WithMemoryHook registers an observer for live buffer sizes; it exists for
// diagnostics only and the pipeline never depends on it.
//
// WithLogger overrides slog.Default for periodic transfer logging.
type Option func(*options) error

type options struct {
	progress   ProgressFunc
	memoryHook MemoryHook
	logger     *slog.Logger
}

func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}

		opts.progress = fn
		return nil
	}
}

func WithMemoryHook(hook MemoryHook) Option {
	return func(opts *options) error {
		if hook == nil {
			return errors.New("memory hook must not be nil")
		}

		opts.memoryHook = hook
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		opts.logger = logger
		return nil
	}
}
