// Package reportfetch builds the report client and downloader described by
// a config.Config. The pieces live in their own packages; this one only
// saves callers from wiring them by hand:
//
//	cfg, err := config.Load("reportfetch.yaml")
//	...
//	c, err := reportfetch.NewClient(cfg, logger)
//	...
//	d, err := reportfetch.NewDownloader(cfg, c, logger)
//	...
//	artifact, err := d.Download(ctx, req, nil)
package reportfetch

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/config"
	"github.com/adamwoolhether/reportfetch/report"
)

// NewClient returns a client carrying cfg's User-Agent and, when both
// values are set, its request throttle.
func NewClient(cfg config.Config, logger *slog.Logger) (*client.Client, error) {
	opts := []client.Option{
		client.WithUserAgent(cfg.UserAgent),
	}
	if logger != nil {
		opts = append(opts, client.WithLogger(logger))
	}
	if cfg.Throttled() {
		opts = append(opts, client.WithThrottle(cfg.Throttle.RPS, cfg.Throttle.Burst))
	}

	c, err := client.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	return c, nil
}

// Endpoint joins cfg's base URL and endpoint path.
func Endpoint(cfg config.Config) (*url.URL, error) {
	return client.Endpoint(cfg.BaseURL, cfg.Endpoint)
}

// DownloaderOptions translates cfg into report options. The materializer
// is left to the caller.
func DownloaderOptions(cfg config.Config, logger *slog.Logger) []report.Option {
	opts := []report.Option{
		report.WithTimeout(cfg.Timeout),
		report.WithClassic(cfg.Classic()),
	}
	if logger != nil {
		opts = append(opts, report.WithLogger(logger))
	}
	if cfg.ChunkSize > 0 {
		opts = append(opts, report.WithChunkSize(int(cfg.ChunkSize)))
	}
	if cfg.MemoryLimit > 0 {
		opts = append(opts, report.WithMemoryLimit(int64(cfg.MemoryLimit)))
	}
	if cfg.Token != "" {
		opts = append(opts, report.WithTokenSource(report.StaticToken(cfg.Token)))
	}

	return opts
}

// NewDownloader returns a Downloader for cfg's endpoint. opts are applied
// after the ones derived from cfg, so they win.
func NewDownloader(cfg config.Config, c *client.Client, logger *slog.Logger, opts ...report.Option) (*report.Downloader, error) {
	u, err := Endpoint(cfg)
	if err != nil {
		return nil, fmt.Errorf("building endpoint: %w", err)
	}

	d, err := report.New(c, u, append(DownloaderOptions(cfg, logger), opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating downloader: %w", err)
	}

	return d, nil
}
