package client_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/client/throttle"
	"github.com/google/go-cmp/cmp"
)

type payload struct {
	RequestID string `json:"request-id"`
	Type      string `json:"type"`
	Part      int    `json:"part"`
}

func serverURL(t *testing.T, ts *httptest.Server) *url.URL {
	t.Helper()

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("failed to parse test server URL: %v", err)
	}
	return u
}

func readAll(resp *http.Response) error {
	_, err := io.ReadAll(resp.Body)
	return err
}

func TestClient_WithUserAgent(t *testing.T) {
	expectedUA := "TestUserAgent/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build(client.WithUserAgent(expectedUA))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, err := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if err := c.Stream(req, readAll); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_WithThrottleAndUserAgent(t *testing.T) {
	expectedUA := "ThrottledAgent/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	// WithThrottle applied before WithUserAgent, order shouldn't matter.
	c, err := client.Build(
		client.WithThrottle(100, 10),
		client.WithUserAgent(expectedUA),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, err := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if err := c.Stream(req, readAll); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return c.next.RoundTrip(r)
}

func TestClient_WithTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rt := &countingTransport{next: http.DefaultTransport}

	c, err := client.Build(client.WithTransport(rt))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)
	if err := c.Stream(req, readAll); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if rt.calls.Load() != 1 {
		t.Errorf("expected custom transport to be used once, got %d", rt.calls.Load())
	}
}

func TestClient_BuildOptionErrors(t *testing.T) {
	testCases := map[string]struct {
		opt    client.Option
		expErr error
	}{
		"nil client":          {opt: client.WithClient(nil)},
		"nil transport":       {opt: client.WithTransport(nil)},
		"negative timeout":    {opt: client.WithTimeout(-time.Second)},
		"zero throttle rps":   {opt: client.WithThrottle(0, 1), expErr: throttle.ErrMustNotBeZero},
		"zero throttle burst": {opt: client.WithThrottle(1, 0), expErr: throttle.ErrMustNotBeZero},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := client.Build(tc.opt)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tc.expErr != nil && !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got %v", tc.expErr, err)
			}
		})
	}
}

func TestClient_WithClientTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer ts.Close()

	c, err := client.Build(client.WithClient(&http.Client{}), client.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)
	err = c.Stream(req, readAll)

	var netErr interface{ Timeout() bool }
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestClient_Stream(t *testing.T) {
	body := "id,name\n1,alice\n"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)
	}))
	defer ts.Close()

	c, _ := client.Build()
	req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)

	var got string
	err := c.Stream(req, func(resp *http.Response) error {
		if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
			t.Errorf("expected text/csv, got %q", ct)
		}
		b, err := io.ReadAll(resp.Body)
		got = string(b)
		return err
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if diff := cmp.Diff(body, got); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_StreamUnexpectedStatus(t *testing.T) {
	testCases := map[string]struct {
		status  int
		body    string
		expAuth bool
	}{
		"server error": {status: http.StatusInternalServerError, body: "boom"},
		"not found":    {status: http.StatusNotFound, body: "no such report"},
		"unauthorized": {status: http.StatusUnauthorized, body: "bad token", expAuth: true},
		"forbidden":    {status: http.StatusForbidden, expAuth: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer ts.Close()

			c, _ := client.Build()
			req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)

			var called bool
			err := c.Stream(req, func(*http.Response) error {
				called = true
				return nil
			})
			if called {
				t.Error("stream func must not run for a non-2xx response")
			}

			statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err)
			if !ok {
				t.Fatalf("expected *UnexpectedStatusError, got %T: %v", err, err)
			}
			if statusErr.StatusCode != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, statusErr.StatusCode)
			}
			if statusErr.Status != http.StatusText(tc.status) {
				t.Errorf("expected status text %q, got %q", http.StatusText(tc.status), statusErr.Status)
			}
			if statusErr.Body != tc.body {
				t.Errorf("expected body %q, got %q", tc.body, statusErr.Body)
			}
			if !errors.Is(err, client.ErrUnexpectedStatusCode) {
				t.Error("expected ErrUnexpectedStatusCode in chain")
			}
			if errors.Is(err, client.ErrAuthFailure) != tc.expAuth {
				t.Errorf("ErrAuthFailure in chain = %v, want %v", !tc.expAuth, tc.expAuth)
			}
		})
	}
}

type statusLineTransport string

func (s statusLineTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	code, _, _ := strings.Cut(string(s), " ")
	n, _ := strconv.Atoi(code)

	return &http.Response{
		StatusCode: n,
		Status:     string(s),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    r,
	}, nil
}

func TestClient_StreamKeepsReasonPhrase(t *testing.T) {
	testCases := map[string]struct {
		statusLine string
		exp        string
	}{
		"custom phrase":   {statusLine: "503 Report Store Overloaded", exp: "Report Store Overloaded"},
		"standard phrase": {statusLine: "404 Not Found", exp: "Not Found"},
		"code only":       {statusLine: "500", exp: "Internal Server Error"},
		"missing":         {statusLine: "502 ", exp: "Bad Gateway"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c, err := client.Build(client.WithTransport(statusLineTransport(tc.statusLine)))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			u, _ := url.Parse("http://reports.test/apireport/report-download")
			req, _ := c.Request(t.Context(), u, http.MethodPost)

			statusErr, ok := errors.AsType[*client.UnexpectedStatusError](c.Stream(req, readAll))
			if !ok {
				t.Fatal("expected *UnexpectedStatusError")
			}
			if statusErr.Status != tc.exp {
				t.Errorf("expected status text %q, got %q", tc.exp, statusErr.Status)
			}
		})
	}
}

func TestClient_StreamErrorBodyCapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, strings.Repeat("x", 64<<10))
	}))
	defer ts.Close()

	c, _ := client.Build()
	req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)

	statusErr, ok := errors.AsType[*client.UnexpectedStatusError](c.Stream(req, readAll))
	if !ok {
		t.Fatal("expected *UnexpectedStatusError")
	}
	if len(statusErr.Body) != 4<<10 {
		t.Errorf("expected error body capped at 4KB, got %d bytes", len(statusErr.Body))
	}
}

func TestClient_StreamFuncError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, strings.Repeat("a", 1<<20))
	}))
	defer ts.Close()

	c, _ := client.Build()
	req, _ := c.Request(t.Context(), serverURL(t, ts), http.MethodPost)

	stop := errors.New("stop reading")
	err := c.Stream(req, func(resp *http.Response) error {
		buf := make([]byte, 16)
		if _, err := io.ReadFull(resp.Body, buf); err != nil {
			return err
		}
		return stop
	})

	if !errors.Is(err, stop) {
		t.Errorf("expected wrapped stream func error, got %v", err)
	}
}

func TestClient_StreamDoError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := serverURL(t, ts)
	ts.Close()

	c, _ := client.Build()
	req, _ := c.Request(t.Context(), u, http.MethodPost)

	err := c.Stream(req, readAll)
	if err == nil || !strings.Contains(err.Error(), "exec http do") {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestRequest(t *testing.T) {
	var (
		gotBody    payload
		gotHeaders http.Header
	)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	want := payload{RequestID: "abc-123", Type: "summary", Part: 2}

	req, err := client.Request(t.Context(), serverURL(t, ts), http.MethodPost,
		client.WithPayload(want),
		client.WithHeaders(http.Header{"Authorization": {"Bearer t0k3n"}}),
		client.WithHeaders(http.Header{"Accept": {"application/octet-stream, */*"}}),
	)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	c, _ := client.Build()
	if err := c.Stream(req, readAll); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if diff := cmp.Diff(want, gotBody); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if ct := gotHeaders.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected default content type, got %q", ct)
	}
	if auth := gotHeaders.Get("Authorization"); auth != "Bearer t0k3n" {
		t.Errorf("expected authorization header, got %q", auth)
	}
	if accept := gotHeaders.Get("Accept"); accept != "application/octet-stream, */*" {
		t.Errorf("expected merged accept header, got %q", accept)
	}
}

func TestRequest_ContentType(t *testing.T) {
	u, _ := url.Parse("http://localhost:9191/apireport")

	req, err := client.Request(t.Context(), u, http.MethodPost, client.WithContentType("text/plain"))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if ct := req.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("expected text/plain, got %q", ct)
	}

	if _, err := client.Request(t.Context(), u, http.MethodPost, client.WithContentType("")); err == nil {
		t.Error("expected error for empty content type")
	}
}

func TestRequest_UnencodablePayload(t *testing.T) {
	u, _ := url.Parse("http://localhost:9191/apireport")

	_, err := client.Request(t.Context(), u, http.MethodPost, client.WithPayload(make(chan int)))
	if err == nil {
		t.Error("expected encoding error")
	}
}

func TestEndpoint(t *testing.T) {
	testCases := map[string]struct {
		base, path string
		exp        string
		expErr     bool
	}{
		"prefix kept":      {base: "http://localhost:9191/apireport", path: "/report-download", exp: "http://localhost:9191/apireport/report-download"},
		"trailing slash":   {base: "https://reports.example.com/api/", path: "report-download", exp: "https://reports.example.com/api/report-download"},
		"no prefix":        {base: "http://127.0.0.1:8080", path: "/report-download", exp: "http://127.0.0.1:8080/report-download"},
		"relative base":    {base: "/apireport", path: "/report-download", expErr: true},
		"unparseable base": {base: "http://[::1", path: "/x", expErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			u, err := client.Endpoint(tc.base, tc.path)
			if tc.expErr {
				if err == nil {
					t.Errorf("expected error, got %v", u)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.String() != tc.exp {
				t.Errorf("expected %q, got %q", tc.exp, u.String())
			}
		})
	}
}
