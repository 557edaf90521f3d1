package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/adamwoolhether/reportfetch"
	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/config"
	"github.com/adamwoolhether/reportfetch/report"
)

// deps is what every command needs once flags and config are resolved.
type deps struct {
	cfg    config.Config
	logger *slog.Logger
	client *client.Client
}

// setup loads the config, applies flag overrides and builds the logger
// and client. Config problems exit with exitUsage.
func setup(c *cli.Context) (deps, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return deps{}, cli.Exit(err, exitUsage)
	}

	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if c.Bool("classic") {
		cfg.Mode = config.ModeClassic
	}
	if dir := c.String("out"); dir != "" {
		cfg.Output.Dir = dir
		cfg.Output.Bucket = ""
	}
	if bucket := c.String("bucket"); bucket != "" {
		cfg.Output.Bucket = bucket
	}
	if err := cfg.Validate(); err != nil {
		return deps{}, cli.Exit(err, exitUsage)
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: cfg.Level()}))

	cl, err := reportfetch.NewClient(cfg, logger)
	if err != nil {
		return deps{}, cli.Exit(err, exitUsage)
	}

	return deps{cfg: cfg, logger: logger, client: cl}, nil
}

// downloader builds a Downloader that saves through cfg's output.
func (rt deps) downloader(ctx context.Context) (*report.Downloader, func(), error) {
	mat, closeFn, err := rt.materializer(ctx)
	if err != nil {
		return nil, nil, cli.Exit(err, exitUsage)
	}

	d, err := reportfetch.NewDownloader(rt.cfg, rt.client, rt.logger, report.WithMaterializer(mat))
	if err != nil {
		closeFn()
		return nil, nil, cli.Exit(err, exitUsage)
	}

	return d, closeFn, nil
}

// materializer opens the configured bucket, or falls back to the output
// directory. The returned func releases the bucket.
func (rt deps) materializer(ctx context.Context) (download.Materializer, func(), error) {
	out := rt.cfg.Output

	if out.Bucket != "" {
		bucket, err := blob.OpenBucket(ctx, out.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("opening bucket %s: %w", out.Bucket, err)
		}

		closeFn := func() {
			if err := bucket.Close(); err != nil {
				rt.logger.Error("closing bucket", "bucket", out.Bucket, "error", err)
			}
		}

		return download.BlobMaterializer{Bucket: bucket, Prefix: out.Prefix}, closeFn, nil
	}

	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating output dir: %w", err)
	}

	return download.FileMaterializer{Dir: out.Dir, Logger: rt.logger}, func() {}, nil
}
