package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/report"
)

// printer writes progress lines, at most one per interval per stage, plus
// every stage change and the final 100%.
type printer struct {
	w        io.Writer
	interval time.Duration

	mu    sync.Mutex
	last  map[string]time.Time
	stage map[string]download.Stage
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:        w,
		interval: time.Second,
		last:     make(map[string]time.Time),
		stage:    make(map[string]download.Stage),
	}
}

func (p *printer) forRequest(req report.DownloadRequest) report.ProgressFunc {
	label := fmt.Sprintf("%s/%d", req.RequestID, req.Part)
	return func(ev report.Progress) {
		p.print(label, ev)
	}
}

func (p *printer) print(label string, ev report.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	changed := p.stage[label] != ev.Stage
	if !changed && ev.Percentage < 100 && now.Sub(p.last[label]) < p.interval {
		return
	}
	p.stage[label] = ev.Stage
	p.last[label] = now

	total := "unknown"
	if ev.Total >= 0 {
		total = humanize.IBytes(uint64(ev.Total))
	}

	fmt.Fprintf(p.w, "%s %-11s %3d%% %s / %s\n", label, ev.Stage, ev.Percentage, humanize.IBytes(uint64(ev.Loaded)), total)
}
