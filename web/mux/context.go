package mux

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey struct{}

// Values are the per-request state shared by handlers and middleware.
type Values struct {
	TraceID    string
	Now        time.Time
	Tracer     trace.Tracer
	StatusCode int

	committed bool
}

func withValues(ctx context.Context, v *Values) context.Context {
	return context.WithValue(ctx, ctxKey{}, v)
}

func lookup(ctx context.Context) (*Values, bool) {
	v, ok := ctx.Value(ctxKey{}).(*Values)
	return v, ok
}

// GetValues returns the request's Values. Outside an App handler it
// returns the nil uuid as trace id and a no-op tracer.
func GetValues(ctx context.Context) *Values {
	if v, ok := lookup(ctx); ok {
		return v
	}

	return &Values{
		TraceID: uuid.Nil.String(),
		Tracer:  noop.NewTracerProvider().Tracer(""),
		Now:     time.Now(),
	}
}

// GetTraceID returns the request's trace id, or the nil uuid.
func GetTraceID(ctx context.Context) string {
	return GetValues(ctx).TraceID
}

// SetStatusCode records the status reported in the request log. It is a
// no-op outside an App handler.
func SetStatusCode(ctx context.Context, statusCode int) {
	if v, ok := lookup(ctx); ok {
		v.StatusCode = statusCode
	}
}

// Committed reports whether the handler has started writing the response,
// after which its status and headers can no longer change.
func Committed(ctx context.Context) bool {
	v, ok := lookup(ctx)
	return ok && v.committed
}

// AddSpan starts a child span on the request's tracer.
func AddSpan(ctx context.Context, spanName string, keyValues ...attribute.KeyValue) (context.Context, trace.Span) {
	v, ok := lookup(ctx)
	if !ok || v.Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	ctx, span := v.Tracer.Start(ctx, spanName)
	span.SetAttributes(keyValues...)

	return ctx, span
}

// statusWriter marks the request committed on its first write.
type statusWriter struct {
	http.ResponseWriter
	v *Values
}

func (sw *statusWriter) commit(code int) {
	if !sw.v.committed {
		sw.v.committed = true
		sw.v.StatusCode = code
	}
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.commit(code)
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(p []byte) (int, error) {
	sw.commit(http.StatusOK)
	return sw.ResponseWriter.Write(p)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}
