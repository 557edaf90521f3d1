package report

import (
	"context"
	"fmt"

	"github.com/adamwoolhether/reportfetch/client/download"
)

// BatchResult is the outcome of one request in a Batch.
type BatchResult struct {
	Request  DownloadRequest
	Artifact Artifact
	Err      error
}

// Batch downloads reqs as independent pipelines, running at most
// maxConcurrent at once (unlimited if <= 0). Each request gets its own
// Downloader sharing d's client and configuration, so they share no
// buffers or state. onProgress may be called from several goroutines at
// once.
//
// Results are returned in request order. The error joins every failure.
func (d *Downloader) Batch(ctx context.Context, reqs []DownloadRequest, maxConcurrent int, onProgress func(DownloadRequest, Progress)) ([]BatchResult, error) {
	q := download.NewQueue(maxConcurrent)

	results := make([]BatchResult, len(reqs))
	queued := make([]*download.Result, len(reqs))

	for i, req := range reqs {
		results[i].Request = req
		worker := d.clone()

		var fn ProgressFunc
		if onProgress != nil {
			fn = func(p Progress) { onProgress(req, p) }
		}

		queued[i] = q.Start(ctx, func(ctx context.Context) error {
			artifact, err := worker.Download(ctx, req, fn)
			results[i].Artifact, results[i].Err = artifact, err
			if err != nil {
				return fmt.Errorf("%s part %d: %w", req.RequestID, req.Part, err)
			}
			return nil
		})
	}

	err := q.Wait()

	// Work that never got a slot reports only through the queue.
	for i, r := range queued {
		if results[i].Err == nil {
			if qerr := r.Err(); qerr != nil {
				results[i].Err = &Error{Kind: KindCancelled, Err: qerr}
			}
		}
	}

	return results, err
}

func (d *Downloader) clone() *Downloader {
	return &Downloader{
		client:   d.client,
		endpoint: d.endpoint,
		cfg:      d.cfg,
		timeout:  d.timeout,
	}
}
