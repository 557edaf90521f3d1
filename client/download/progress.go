package download

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// Stage names the pipeline step a Progress event belongs to.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageDecoding    Stage = "decoding"
	StageValidating  Stage = "validating"
	StageSaving      Stage = "saving"
)

// Progress is a point-in-time report from the pipeline.
//
// Loaded is the cumulative count of bytes received from the transport and
// never decreases within one download, whatever the stage. Percentage is
// relative to the current stage. Processed carries stage-relative units,
// e.g. base64 characters consumed while decoding.
type Progress struct {
	Loaded     int64
	Total      int64 // -1 when the server did not declare a length.
	Percentage int
	Stage      Stage
	Processed  int64
}

// ProgressFunc receives Progress events. It is called synchronously from
// the pipeline goroutine and should return quickly.
type ProgressFunc func(Progress)

// Usage reports how many bytes of pipeline buffers are live at a stage.
type Usage struct {
	Stage Stage
	Live  int64
}

// MemoryHook observes Usage reports. It has no effect on the pipeline.
type MemoryHook func(Usage)

// Meter is the single place progress is computed for one download. It fans
// events out to the caller's ProgressFunc, forwards buffer usage to the
// MemoryHook and logs at most once per second. A nil *Meter discards
// everything.
type Meter struct {
	fn        ProgressFunc
	hook      MemoryHook
	logger    *slog.Logger
	loaded    int64
	total     int64
	startTime time.Time
	lastLog   time.Time
}

// NewMeter creates a Meter for a transfer of total bytes (<= 0 if unknown).
func NewMeter(total int64, optFns ...Option) (*Meter, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if total <= 0 {
		total = -1
	}

	m := Meter{
		fn:        opts.progress,
		hook:      opts.memoryHook,
		logger:    opts.logger,
		total:     total,
		startTime: time.Now(),
	}

	return &m, nil
}

// Received records n more bytes off the wire.
func (m *Meter) Received(n int) {
	if m == nil {
		return
	}
	m.loaded += int64(n)

	m.emit(Progress{
		Loaded:     m.loaded,
		Total:      m.total,
		Percentage: percent(m.loaded, m.total),
		Stage:      StageDownloading,
		Processed:  m.loaded,
	})

	if time.Since(m.lastLog) >= time.Second {
		m.lastLog = time.Now()
		m.log("downloading")
	}
}

// Stage reports stage-relative progress without touching Loaded.
func (m *Meter) Stage(s Stage, processed, of int64) {
	if m == nil {
		return
	}

	pct := percent(processed, of)
	if of <= 0 || processed >= of {
		pct = 100
	}

	m.emit(Progress{
		Loaded:     m.loaded,
		Total:      m.total,
		Percentage: pct,
		Stage:      s,
		Processed:  processed,
	})
}

// Usage forwards the live buffer size at a stage to the MemoryHook.
func (m *Meter) Usage(s Stage, live int64) {
	if m == nil || m.hook == nil {
		return
	}
	m.hook(Usage{Stage: s, Live: live})
}

// Loaded returns the bytes received so far.
func (m *Meter) Loaded() int64 {
	if m == nil {
		return 0
	}
	return m.loaded
}

// Total returns the declared transfer size, or -1.
func (m *Meter) Total() int64 {
	if m == nil {
		return -1
	}
	return m.total
}

// Done logs the transfer summary.
func (m *Meter) Done() {
	if m == nil {
		return
	}
	m.log("download complete")
}

func (m *Meter) emit(p Progress) {
	if m.fn == nil {
		return
	}
	m.fn(p)
}

func (m *Meter) log(msg string) {
	elapsed := time.Since(m.startTime)
	attrs := []any{
		"transferred", humanize.IBytes(uint64(m.loaded)),
		"elapsed", elapsed.Round(time.Millisecond),
	}
	if m.total > 0 {
		attrs = append(attrs,
			"progress", fmt.Sprintf("%d%%", percent(m.loaded, m.total)),
			"total", humanize.IBytes(uint64(m.total)),
		)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		attrs = append(attrs, "rate", humanize.IBytes(uint64(float64(m.loaded)/secs))+"/s")
	}
	m.logger.Info(msg, attrs...)
}

// percent returns n/total rounded to the nearest whole percentage and
// clamped to [0, 100]. An unknown or zero total yields 0.
func percent(n, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(n) / float64(total) * 100))
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
