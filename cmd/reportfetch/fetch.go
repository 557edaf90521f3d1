package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/adamwoolhether/reportfetch/report"
)

// outputFlags choose where artifacts are written, overriding the config.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Usage: "Directory to save into",
		},
		&cli.StringFlag{
			Name:  "bucket",
			Usage: "Bucket URL to save into (file://, mem://, s3://, gs://)",
		},
		&cli.BoolFlag{
			Name:  "classic",
			Usage: "Read each response in one piece instead of streaming it",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress progress output",
		},
	}
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download one report part",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "request-id",
				Aliases:  []string{"r"},
				Usage:    "Report request id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Report type: summary, detail or report",
				Value: string(report.TypeReport),
			},
			&cli.IntFlag{
				Name:  "part",
				Usage: "Part number, starting at 1",
				Value: 1,
			},
			&cli.StringFlag{
				Name:  "file-name",
				Usage: "File name to save as; an extension is added from the content type (default: the request id)",
			},
		}, outputFlags()...),
		Action: fetchAction,
	}
}

func fetchAction(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := interruptible(c)
	defer stop()

	d, closeFn, err := rt.downloader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	req := report.DownloadRequest{
		RequestID:  c.String("request-id"),
		ReportType: report.ReportType(c.String("type")),
		Part:       c.Int("part"),
		FileName:   c.String("file-name"),
	}
	if req.FileName == "" {
		req.FileName = req.RequestID
	}

	var onProgress report.ProgressFunc
	if !c.Bool("quiet") {
		onProgress = newPrinter(c.App.ErrWriter).forRequest(req)
	}

	artifact, err := d.Download(ctx, req, onProgress)
	if err != nil {
		return cli.Exit(report.Message(err), exitFailure)
	}

	printArtifact(c, artifact)

	return nil
}

func printArtifact(c *cli.Context, a report.Artifact) {
	for _, w := range a.Warnings {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", w)
	}

	fmt.Fprintf(c.App.Writer, "%s downloaded successfully (%s) -> %s sha256:%s\n",
		a.FileName, humanize.IBytes(uint64(a.ByteSize)), a.Location, a.Checksum)
}

// interruptible returns a context cancelled by SIGINT or SIGTERM.
func interruptible(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}
