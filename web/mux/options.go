package mux

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type Option func(*options)

type options struct {
	tracer   trace.Tracer
	logger   *slog.Logger
	globalMW []Middleware
	mw       []Middleware
}

// WithMiddleware sets the route middleware. It wraps each registered
// handler in the order given, the first entry outermost, so a typical stack
// is Logger, Errors, then anything custom, then Panics.
func WithMiddleware(mw ...Middleware) Option {
	return func(opts *options) {
		opts.mw = append(opts.mw, mw...)
	}
}

// WithGlobalMiddleware sets middleware that runs for every request before
// routing, including unmatched paths and CORS preflights.
func WithGlobalMiddleware(mw ...Middleware) Option {
	return func(opts *options) {
		opts.globalMW = append(opts.globalMW, mw...)
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) {
		opts.tracer = tracer
	}
}

// WithLogger sets the logger used for errors that escape the middleware.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = log
	}
}
