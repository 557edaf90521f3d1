package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adamwoolhether/reportfetch/client/throttle"
)

// Client issues report requests and hands successful responses to a
// StreamFunc without buffering them.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

// Build creates a Client. Without options it uses a fresh *http.Client
// with no timeout over http.DefaultTransport.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	c := &Client{
		c:      opts.client,
		logger: opts.logger,
	}
	if c.c == nil {
		c.c = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.timeout != nil {
		c.c.Timeout = *opts.timeout
	}

	rt, err := opts.transport(c.c.Transport, func() *slog.Logger { return c.logger })
	if err != nil {
		return nil, err
	}
	c.c.Transport = rt

	return c, nil
}

// transport layers the User-Agent and throttle round trippers over the
// configured base transport, falling back to existing and then
// http.DefaultTransport.
func (o options) transport(existing http.RoundTripper, logFn func() *slog.Logger) (http.RoundTripper, error) {
	rt := o.rt
	if rt == nil {
		rt = existing
	}
	if rt == nil {
		rt = http.DefaultTransport
	}

	if o.userAgent != "" {
		rt = userAgent{value: o.userAgent, base: rt}
	}

	if o.throttle != nil {
		limited, err := throttle.NewRoundTripper(*o.throttle, logFn, rt)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		rt = limited
	}

	return rt, nil
}

// Stream sends req and passes the response to fn if the status is 2xx.
// fn reads the body; Stream closes it. When fn fails, the unread body is
// closed without draining so nothing more comes off the wire.
func (c *Client) Stream(req *http.Request, fn StreamFunc) error {
	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("exec http do: %w", err)
	}

	drain := true
	defer func() {
		if drain {
			if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize)); err != nil {
				c.logger.Error("draining response body", "url", req.URL.Redacted(), "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("closing response body", "url", req.URL.Redacted(), "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := fn(resp); err != nil {
		drain = false
		return fmt.Errorf("exec fn: %w", err)
	}

	return nil
}

// statusError reads at most maxErrBodySize of a failed response into an
// *UnexpectedStatusError.
func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		body = []byte("unable to read body")
	}

	sentinel := ErrUnexpectedStatusCode
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	return &UnexpectedStatusError{
		StatusCode: resp.StatusCode,
		Status:     reasonPhrase(resp),
		Body:       string(body),
		Err:        sentinel,
	}
}

// reasonPhrase returns the server's own status text, or the standard text
// for the code when the status line carried none.
func reasonPhrase(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}

	return text
}

// Request is a method form of the package level Request.
func (c *Client) Request(ctx context.Context, reqURL *url.URL, method string, opts ...RequestOption) (*http.Request, error) {
	return Request(ctx, reqURL, method, opts...)
}

// Request builds an *http.Request for reqURL. A payload set with
// WithPayload is JSON encoded, and Content-Type is application/json
// unless WithContentType says otherwise.
func Request(ctx context.Context, reqURL *url.URL, method string, opts ...RequestOption) (*http.Request, error) {
	settings := requestOpts{contentType: "application/json"}
	for _, opt := range opts {
		if err := opt(&settings); err != nil {
			return nil, err
		}
	}

	var body bytes.Buffer
	if settings.body != nil {
		if err := json.NewEncoder(&body).Encode(settings.body); err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), &body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	req.Header.Set("Content-Type", settings.contentType)
	for key, values := range settings.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	return req, nil
}

// Endpoint joins base and path into a URL, keeping any path prefix on base.
func Endpoint(base, path string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", base)
	}

	return u.JoinPath(path), nil
}
