package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/reportfetch/report"
)

// batchFile lists the requests of a batch. JSON is accepted as well, being
// a subset of YAML.
type batchFile struct {
	Requests []batchEntry `yaml:"requests"`
}

type batchEntry struct {
	RequestID string `yaml:"requestId"`
	Type      string `yaml:"type"`
	Part      int    `yaml:"part"`
	FileName  string `yaml:"fileName"`
}

func (e batchEntry) request() report.DownloadRequest {
	req := report.DownloadRequest{
		RequestID:  e.RequestID,
		ReportType: report.ReportType(e.Type),
		Part:       e.Part,
		FileName:   e.FileName,
	}
	if req.ReportType == "" {
		req.ReportType = report.TypeReport
	}
	if req.Part == 0 {
		req.Part = 1
	}
	if req.FileName == "" {
		req.FileName = fmt.Sprintf("%s-part%d", req.RequestID, req.Part)
	}
	return req
}

func loadBatch(path string) ([]report.DownloadRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close()

	var bf batchFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		return nil, fmt.Errorf("decoding batch file: %w", err)
	}
	if len(bf.Requests) == 0 {
		return nil, fmt.Errorf("batch file %s has no requests", path)
	}

	reqs := make([]report.DownloadRequest, len(bf.Requests))
	for i, e := range bf.Requests {
		reqs[i] = e.request()
	}

	return reqs, nil
}

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Download every report listed in a YAML or JSON file",
		ArgsUsage: "FILE",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Maximum downloads at once (default: max_concurrent from config, 0 for no limit)",
			},
		}, outputFlags()...),
		Action: batchAction,
	}
}

func batchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("batch needs exactly one FILE argument", exitUsage)
	}

	reqs, err := loadBatch(c.Args().First())
	if err != nil {
		return cli.Exit(err, exitUsage)
	}

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

	concurrency := rt.cfg.MaxConcurrent
	if c.IsSet("concurrency") {
		concurrency = c.Int("concurrency")
	}

	var onProgress func(report.DownloadRequest, report.Progress)
	if !c.Bool("quiet") {
		p := newPrinter(c.App.ErrWriter)
		onProgress = func(req report.DownloadRequest, ev report.Progress) {
			p.forRequest(req)(ev)
		}
	}

	results, _ := d.Batch(ctx, reqs, concurrency, onProgress)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(c.App.ErrWriter, "%s part %d failed: %s\n", r.Request.RequestID, r.Request.Part, report.Message(r.Err))
			continue
		}
		printArtifact(c, r.Artifact)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d downloads failed", failed, len(results)), exitFailure)
	}

	return nil
}
