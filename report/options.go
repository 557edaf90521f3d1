package report

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/reportfetch/client/download"
)

// DefaultTimeout bounds a whole download attempt, from sending the request
// to saving the artifact.
const DefaultTimeout = 60 * time.Minute

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Option configures a Downloader.
type Option func(*options) error

type options struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	mat         download.Materializer
	tokens      TokenSource
	classic     bool
	chunkSize   int
	memoryHook  download.MemoryHook
	memoryLimit int64
	timeout     *time.Duration
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		opts.logger = logger
		return nil
	}
}

// WithTracer records every download and its stages as spans on tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		opts.tracer = tracer
		return nil
	}
}

// WithMaterializer sets where artifacts are saved. Defaults to the
// current directory.
func WithMaterializer(mat download.Materializer) Option {
	return func(opts *options) error {
		if mat == nil {
			return download.ErrNilMaterializer
		}
		opts.mat = mat
		return nil
	}
}

// WithTokenSource sets the source of the bearer token. Without one no
// Authorization header is sent.
func WithTokenSource(ts TokenSource) Option {
	return func(opts *options) error {
		if ts == nil {
			return errors.New("token source must not be nil")
		}
		opts.tokens = ts
		return nil
	}
}

// WithClassic reads each response in one piece instead of streaming it
// in chunks. Progress is still reported as bytes arrive.
func WithClassic(classic bool) Option {
	return func(opts *options) error {
		opts.classic = classic
		return nil
	}
}

// WithChunkSize sets the read size used when streaming.
func WithChunkSize(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("chunk size must be greater than zero")
		}
		opts.chunkSize = n
		return nil
	}
}

// WithMemoryHook observes the live size of pipeline buffers.
func WithMemoryHook(hook download.MemoryHook) Option {
	return func(opts *options) error {
		if hook == nil {
			return errors.New("memory hook must not be nil")
		}
		opts.memoryHook = hook
		return nil
	}
}

// WithMemoryLimit logs a warning once per download when live pipeline
// buffers exceed 70% of limit bytes. Nothing is enforced.
func WithMemoryLimit(limit int64) Option {
	return func(opts *options) error {
		if limit < 0 {
			return errors.New("memory limit must not be negative")
		}
		opts.memoryLimit = limit
		return nil
	}
}

// WithTimeout overrides DefaultTimeout. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(opts *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		opts.timeout = &d
		return nil
	}
}
