// Package mux routes gateway requests through a middleware chain built
// around error-returning handlers.
package mux

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// CorrelationHeader carries the request's trace id in both directions.
const CorrelationHeader = "X-Correlation-ID"

// App is the gateway's router.
type App struct {
	mux      *http.ServeMux
	globalMW []Middleware
	mw       []Middleware
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Handler is an http handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware wraps a Handler.
type Middleware func(handler Handler) Handler

// New creates an App. A no-op tracer and slog.Default are used unless
// overridden.
func New(optFns ...Option) *App {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	return &App{
		mux:      http.NewServeMux(),
		globalMW: opts.globalMW,
		mw:       opts.mw,
		logger:   opts.logger,
		tracer:   opts.tracer,
	}
}

// ServeHTTP runs the global middleware, then dispatches to the route.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serve := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		a.mux.ServeHTTP(w, r)
		return nil
	}

	if err := wrap(a.globalMW, serve)(r.Context(), w, r); err != nil {
		a.logger.Error("mux: serve http", "error", err)
	}
}

// Use appends route middleware. It affects routes registered afterwards.
func (a *App) Use(mw ...Middleware) {
	a.mw = append(a.mw, mw...)
}

// Get registers fn for GET requests on path.
func (a *App) Get(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodGet, path, fn, mw...)
}

// Post registers fn for POST requests on path.
func (a *App) Post(path string, fn Handler, mw ...Middleware) {
	a.Handle(http.MethodPost, path, fn, mw...)
}

// Handle registers handler for method and path, wrapped by the App's
// route middleware and then mw.
func (a *App) Handle(method, path string, handler Handler, mw ...Middleware) {
	handler = wrap(mw, handler)
	handler = wrap(a.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := a.startSpan(w, r)
		defer span.End()

		v := Values{
			TraceID: traceID(r, span),
			Now:     time.Now().UTC(),
			Tracer:  a.tracer,
		}
		w.Header().Set(CorrelationHeader, v.TraceID)

		r = r.WithContext(withValues(ctx, &v))

		if err := handler(r.Context(), &statusWriter{ResponseWriter: w, v: &v}, r); err != nil {
			a.logger.Error("mux: handle", "path", path, "error", err)
		}
	}

	a.mux.HandleFunc(method+" "+path, h)
}

func (a *App) startSpan(w http.ResponseWriter, r *http.Request) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := a.tracer.Start(ctx, "mux.handler")
	span.SetAttributes(attribute.String("path", r.RequestURI))

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// traceID prefers a caller supplied correlation id, then the span's trace
// id, then a fresh uuid.
func traceID(r *http.Request, span trace.Span) string {
	if id, err := uuid.Parse(r.Header.Get(CorrelationHeader)); err == nil {
		return id.String()
	}

	if tid := span.SpanContext().TraceID(); tid.IsValid() {
		return tid.String()
	}

	return uuid.NewString()
}

func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}
