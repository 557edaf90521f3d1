package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/validate"
)

const (
	acceptHeader       = "application/octet-stream, application/zip, text/csv, */*"
	correlationHeader  = "X-Correlation-ID"
	defaultContentType = "application/octet-stream"
	highUsageRatio     = 0.7
)

// Downloader fetches reports one at a time and saves them through a
// Materializer. It records the state of the current or most recent
// attempt. Use Batch, or one Downloader per goroutine, to run downloads
// concurrently.
type Downloader struct {
	client   *client.Client
	endpoint *url.URL
	cfg      options
	timeout  time.Duration

	mu       sync.Mutex
	state    State
	inFlight bool
	cancel   context.CancelFunc
}

// New creates a Downloader that POSTs requests to endpoint using c.
func New(c *client.Client, endpoint *url.URL, optFns ...Option) (*Downloader, error) {
	if c == nil {
		return nil, errors.New("client must not be nil")
	}
	if endpoint == nil {
		return nil, errors.New("endpoint must not be nil")
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}
	if opts.mat == nil {
		opts.mat = download.FileMaterializer{Dir: ".", Logger: opts.logger}
	}

	timeout := DefaultTimeout
	if opts.timeout != nil {
		timeout = *opts.timeout
	}

	d := Downloader{
		client:   c,
		endpoint: endpoint,
		cfg:      opts,
		timeout:  timeout,
	}

	return &d, nil
}

// Download requests the report described by req, streams the response,
// unwraps base64 archives, checks ZIP signatures and saves the result.
// onProgress, if not nil, is called synchronously for every progress event.
//
// Failures are returned as *Error. A bad archive signature is not a
// failure; it is reported in Artifact.Warnings. Calling Download while
// another call is running on the same Downloader returns ErrInFlight.
func (d *Downloader) Download(ctx context.Context, req DownloadRequest, onProgress ProgressFunc) (Artifact, error) {
	ctx, stop, err := d.begin(ctx)
	if err != nil {
		return Artifact{}, err
	}
	defer d.end(stop)

	correlationID := CorrelationID(ctx)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := d.cfg.logger.With("correlation_id", correlationID, "request_id", req.RequestID, "part", req.Part)

	ctx, span := d.cfg.tracer.Start(ctx, "report.download", trace.WithAttributes(
		attribute.String("correlation_id", correlationID),
		attribute.String("request_id", req.RequestID),
		attribute.String("report_type", string(req.ReportType)),
		attribute.Int("part", req.Part),
	))
	defer span.End()

	artifact, err := d.run(ctx, req, correlationID, logger, onProgress)
	if err != nil {
		rerr := classify(ctx, err, KindNetwork)
		span.RecordError(rerr)
		span.SetStatus(codes.Error, rerr.Kind.String())

		if rerr.Kind == KindCancelled {
			logger.Info("download cancelled", "state", d.State())
			d.setState(StateCancelled)
		} else {
			logger.Error("download failed", "state", d.State(), "kind", rerr.Kind, "error", err)
			d.setState(StateFailed)
		}

		return Artifact{}, rerr
	}

	d.setState(StateCompleted)

	return artifact, nil
}

// Cancel stops the download in flight, if any. It is safe to call at any
// time and more than once.
func (d *Downloader) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel()
	}
}

// State returns the state of the current or most recent attempt.
func (d *Downloader) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// Reset returns a finished Downloader to StateIdle. It has no effect while
// a download is in flight.
func (d *Downloader) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.inFlight {
		d.state = StateIdle
	}
}

func (d *Downloader) begin(parent context.Context) (context.Context, context.CancelFunc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inFlight {
		return nil, nil, ErrInFlight
	}

	ctx, cancel := context.WithCancel(parent)
	stop := cancel
	if d.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d.timeout)
		stop = func() {
			cancelTimeout()
			cancel()
		}
	}

	d.inFlight = true
	d.state = StateIdle
	d.cancel = cancel

	return ctx, stop, nil
}

func (d *Downloader) end(stop context.CancelFunc) {
	stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.inFlight = false
	d.cancel = nil
}

func (d *Downloader) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = s
}

func (d *Downloader) run(ctx context.Context, req DownloadRequest, correlationID string, logger *slog.Logger, onProgress ProgressFunc) (Artifact, error) {
	if err := validate.Check(req); err != nil {
		return Artifact{}, &Error{Kind: KindInvalidRequest, Err: err}
	}

	d.setState(StateRequesting)

	var (
		env         *download.Envelope
		meter       *download.Meter
		contentType string
	)

	recvCtx, span := d.cfg.tracer.Start(ctx, "report.receive")
	httpReq, err := d.request(recvCtx, req, correlationID)
	if err != nil {
		endSpan(span, err)
		return Artifact{}, err
	}

	err = d.client.Stream(httpReq, func(resp *http.Response) error {
		if enc := resp.Header.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
			return fmt.Errorf("%w: %q", errUnsupportedEncoding, enc)
		}

		contentType = resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = defaultContentType
		}

		d.setState(StateReceiving)
		logger.Info("receiving report", "content_type", contentType, "declared", resp.ContentLength)
		span.SetAttributes(attribute.String("content_type", contentType), attribute.Int64("declared", resp.ContentLength))

		var err error
		meter, err = download.NewMeter(resp.ContentLength, d.meterOptions(logger, onProgress)...)
		if err != nil {
			return err
		}

		env, err = download.Accumulate(d.source(ctx, resp.Body, resp.ContentLength, meter), contentType, meter)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return Artifact{}, err
	}

	artifact := Artifact{ContentType: contentType}

	if download.IsZip(contentType) {
		if download.LooksBase64(env.Bytes) {
			d.setState(StateDecoding)

			_, span := d.cfg.tracer.Start(ctx, "report.decode", trace.WithAttributes(attribute.Int64("encoded", env.Len())))
			decoded, err := download.DecodeBase64(ctx, env, meter)
			endSpan(span, err)
			if err != nil {
				env.Release()
				return Artifact{}, err
			}

			logger.Info("unwrapped base64 payload", "encoded", humanize.IBytes(uint64(meter.Loaded())), "decoded", humanize.IBytes(uint64(decoded.Len())))
			env = decoded
			artifact.Decoded = true
		}

		d.setState(StateValidating)

		_, span := d.cfg.tracer.Start(ctx, "report.validate")
		meter.Stage(download.StageValidating, 0, 1)
		if !download.ValidZip(env.Bytes) {
			warning := &ValidationWarning{
				FileName: req.FileName,
				Prefix:   bytes.Clone(env.Bytes[:min(4, len(env.Bytes))]),
			}
			artifact.Warnings = append(artifact.Warnings, warning)
			span.AddEvent("invalid signature")
			logger.Warn("archive signature check failed, saving anyway", "error", warning)
		}
		meter.Stage(download.StageValidating, 1, 1)
		span.End()
	}

	detected := mimetype.Detect(env.Bytes)
	artifact.DetectedType = detected.String()
	if declared := download.MediaType(contentType); !agrees(detected, declared) {
		logger.Warn("declared content type does not match payload", "declared", declared, "detected", detected.String())
	}

	d.setState(StateSaving)

	name := download.EnsureExtension(req.FileName, contentType)

	_, span = d.cfg.tracer.Start(ctx, "report.save", trace.WithAttributes(attribute.String("file", name)))
	saved, err := download.Save(ctx, d.cfg.mat, name, env, meter)
	endSpan(span, err)
	if err != nil {
		return Artifact{}, classify(ctx, err, KindStorage)
	}
	meter.Done()

	artifact.FileName = name
	artifact.ByteSize = saved.Size
	artifact.Location = saved.Location
	artifact.Checksum = saved.Checksum

	logger.Info("report saved", "file", name, "location", saved.Location, "size", humanize.IBytes(uint64(saved.Size)), "sha256", saved.Checksum)

	return artifact, nil
}

// request builds the POST for req with the JSON body and headers the
// report service expects.
func (d *Downloader) request(ctx context.Context, req DownloadRequest, correlationID string) (*http.Request, error) {
	headers := http.Header{}
	headers.Set("Accept", acceptHeader)
	headers.Set(correlationHeader, correlationID)

	if d.cfg.tokens != nil {
		token, err := d.cfg.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching token: %w", err)
		}
		if token != "" {
			headers.Set("Authorization", "Bearer "+token)
		}
	}

	return d.client.Request(ctx, d.endpoint, http.MethodPost,
		client.WithPayload(newBody(req)),
		client.WithHeaders(headers),
	)
}

func (d *Downloader) source(ctx context.Context, body io.Reader, declared int64, m *download.Meter) download.Source {
	if d.cfg.classic {
		return download.NewBufferedSource(ctx, body, declared, m)
	}
	return download.NewStreamSource(ctx, body, declared, m, d.cfg.chunkSize)
}

func (d *Downloader) meterOptions(logger *slog.Logger, onProgress ProgressFunc) []download.Option {
	opts := []download.Option{download.WithLogger(logger)}
	if onProgress != nil {
		opts = append(opts, download.WithProgress(onProgress))
	}
	if hook := d.memoryHook(logger); hook != nil {
		opts = append(opts, download.WithMemoryHook(hook))
	}

	return opts
}

// memoryHook combines the caller's hook with the high usage warning. It
// returns nil when neither is configured.
func (d *Downloader) memoryHook(logger *slog.Logger) download.MemoryHook {
	hook, limit := d.cfg.memoryHook, d.cfg.memoryLimit
	if hook == nil && limit <= 0 {
		return nil
	}

	var warned bool
	return func(u download.Usage) {
		if hook != nil {
			hook(u)
		}
		if limit > 0 && !warned && float64(u.Live) > highUsageRatio*float64(limit) {
			warned = true
			logger.Warn("high pipeline memory usage",
				"stage", u.Stage,
				"live", humanize.IBytes(uint64(u.Live)),
				"limit", humanize.IBytes(uint64(limit)),
			)
		}
	}
}

// agrees reports whether the sniffed type is compatible with the declared
// one. Octet streams and text declared as a more specific text type are
// accepted.
func agrees(detected *mimetype.MIME, declared string) bool {
	if declared == defaultContentType {
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return true
		}
	}

	return strings.HasPrefix(declared, "text/") && detected.Is("text/plain")
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
