package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/reportfetch/client/throttle"
)

// Option configures a [Client] in [Build].
type Option func(*options) error

type options struct {
	client    *http.Client
	rt        http.RoundTripper
	timeout   *time.Duration
	userAgent string
	throttle  *throttle.Config
	logger    *slog.Logger
}

// WithClient uses hc instead of a fresh [http.Client]. Its Transport, if
// any, becomes the base transport unless WithTransport is also given.
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets the base [http.RoundTripper].
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request deadline on the underlying
// [http.Client]. It covers reading the whole body, so it must be long
// enough for the largest expected report. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.timeout = &d
		return nil
	}
}

// WithUserAgent sets the User-Agent of every request.
func WithUserAgent(value string) Option {
	return func(o *options) error {
		o.userAgent = value
		return nil
	}
}

// WithThrottle limits outbound requests to rps per second with bursts of
// up to burst.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}
		return nil
	}
}

// WithLogger sets the logger. The default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("User-Agent", ua.value)

	return ua.base.RoundTrip(r)
}

// RequestOption configures a request built by [Request].
type RequestOption func(*requestOpts) error

type requestOpts struct {
	body        any
	contentType string
	headers     http.Header
}

// WithPayload sets a value to be JSON encoded as the request body.
func WithPayload(body any) RequestOption {
	return func(r *requestOpts) error {
		r.body = body
		return nil
	}
}

// WithContentType replaces the default application/json Content-Type.
func WithContentType(contentType string) RequestOption {
	return func(r *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}
		r.contentType = contentType
		return nil
	}
}

// WithHeaders adds headers to the request. Values for a key given more
// than once accumulate.
func WithHeaders(headers http.Header) RequestOption {
	return func(r *requestOpts) error {
		if r.headers == nil {
			r.headers = make(http.Header, len(headers))
		}
		for key, values := range headers {
			r.headers[key] = append(r.headers[key], values...)
		}
		return nil
	}
}
