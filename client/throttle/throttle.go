package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// minLoggedWait keeps requests that got a token almost immediately out of
// the logs.
const minLoggedWait = 10 * time.Millisecond

// Config is the request rate (per second) and the burst allowed above it.
type Config struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

func (c Config) validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}
	return nil
}

type throttle struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// NewRoundTripper wraps next so that requests are sent at no more than
// cfg.RPS per second. logFn is called per request so the logger can be
// set after the transport is built; it may be nil, or return nil, to
// disable logging. Requests that had to wait are logged with the
// X-Correlation-ID they carry.
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	return &throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   logFn,
	}, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w before wait: %w", ErrContextEnded, err)
	}

	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if waited := time.Since(start); waited >= minLoggedWait {
		if logger := t.logFn(); logger != nil {
			logger.Info("report request throttled",
				"waited", waited.Round(time.Millisecond).String(),
				"rps", t.cfg.RPS,
				"burst", t.cfg.Burst,
				"correlation_id", r.Header.Get("X-Correlation-ID"))
		}
	}

	// The token may arrive just as the deadline passes.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w after wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
