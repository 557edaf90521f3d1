// Package gateway serves report downloads over HTTP. Each request runs
// its own report.Downloader and streams the artifact straight back to the
// caller as an attachment.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/report"
	"github.com/adamwoolhether/reportfetch/validate"
	"github.com/adamwoolhether/reportfetch/web"
	"github.com/adamwoolhether/reportfetch/web/errs"
	"github.com/adamwoolhether/reportfetch/web/middleware"
	"github.com/adamwoolhether/reportfetch/web/mux"
)

// Config wires the gateway to the report service.
type Config struct {
	Client      *client.Client
	Endpoint    *url.URL
	Logger      *slog.Logger
	Tracer      trace.Tracer
	CORSOrigins []string

	// Options are applied to every per-request Downloader, before the
	// gateway's own materializer, logger and tracer.
	Options []report.Option
}

type handlers struct {
	client   *client.Client
	endpoint *url.URL
	log      *slog.Logger
	opts     []report.Option
}

// New returns the gateway's routes:
//
//	GET  /healthz
//	POST /v1/reports/download                 JSON report.DownloadRequest
//	GET  /v1/reports/{requestID}/parts/{part} ?type=&fileName=
func New(cfg Config) (*mux.App, error) {
	if cfg.Client == nil {
		return nil, errors.New("client must not be nil")
	}
	if cfg.Endpoint == nil {
		return nil, errors.New("endpoint must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mw := []mux.Middleware{
		middleware.Logger(cfg.Logger),
		middleware.Errors(cfg.Logger),
		middleware.Panics(),
	}

	appOpts := []mux.Option{mux.WithLogger(cfg.Logger), mux.WithMiddleware(mw...)}
	if len(cfg.CORSOrigins) > 0 {
		appOpts = append(appOpts, mux.WithGlobalMiddleware(middleware.CORS(cfg.CORSOrigins)))
	}
	if cfg.Tracer != nil {
		appOpts = append(appOpts, mux.WithTracer(cfg.Tracer))
	}
	app := mux.New(appOpts...)

	h := handlers{
		client:   cfg.Client,
		endpoint: cfg.Endpoint,
		log:      cfg.Logger,
		opts:     cfg.Options,
	}

	app.Get("/healthz", h.health)
	app.Post("/v1/reports/download", h.downloadJSON)
	app.Get("/v1/reports/{requestID}/parts/{part}", h.downloadPath)

	return app, nil
}

func (h handlers) health(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.RespondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h handlers) downloadJSON(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req report.DownloadRequest
	if err := web.Decode(r, &req); err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.New(http.StatusBadRequest, err)
	}

	return h.download(ctx, w, req)
}

func (h handlers) downloadPath(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	requestID, err := web.Param(r, "requestID")
	if err != nil {
		return errs.New(http.StatusBadRequest, err)
	}

	part, err := web.ParamInt(r, "part")
	if err != nil {
		return errs.New(http.StatusBadRequest, err)
	}

	req := report.DownloadRequest{
		RequestID:  requestID,
		ReportType: report.ReportType(web.QueryString(r, "type", string(report.TypeReport))),
		Part:       part,
		FileName:   web.QueryString(r, "fileName", requestID),
	}

	return h.download(ctx, w, req)
}

func (h handlers) download(ctx context.Context, w http.ResponseWriter, req report.DownloadRequest) error {
	v := mux.GetValues(ctx)

	ctx = report.WithCorrelationID(ctx, v.TraceID)
	ctx, span := mux.AddSpan(ctx, "gateway.download",
		attribute.String("request_id", req.RequestID),
		attribute.Int("part", req.Part),
	)
	defer span.End()

	opts := append(slices.Clone(h.opts),
		report.WithMaterializer(download.ResponseMaterializer{W: w}),
		report.WithLogger(h.log),
		report.WithTracer(v.Tracer),
	)

	d, err := report.New(h.client, h.endpoint, opts...)
	if err != nil {
		return errs.NewInternal(fmt.Errorf("creating downloader: %w", err))
	}

	artifact, err := d.Download(ctx, req, nil)
	if err != nil {
		return statusFor(err)
	}

	for _, warn := range artifact.Warnings {
		h.log.Warn("report served with warning", "trace_id", v.TraceID, "warning", warn)
	}
	h.log.Info("report served", "trace_id", v.TraceID, "file", artifact.FileName, "size", humanize.IBytes(uint64(artifact.ByteSize)), "type", artifact.ContentType)

	return nil
}
