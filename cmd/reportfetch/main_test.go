package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

// zipBytes is an empty archive: just the end-of-central-directory record.
var zipBytes = append([]byte("PK\x05\x06"), make([]byte, 18)...)

type result struct {
	stdout, stderr string
	err            error
}

func (r result) code() int {
	if r.err == nil {
		return 0
	}
	if ec, ok := errors.AsType[cli.ExitCoder](r.err); ok {
		return ec.ExitCode()
	}
	return -1
}

func run(t *testing.T, ctx context.Context, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(ctx, append([]string{"reportfetch"}, args...))

	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// upstream serves body with contentType and points the config at it.
func upstream(t *testing.T, handler http.HandlerFunc) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	t.Setenv("REPORTFETCH_BASE_URL", ts.URL+"/apireport")
	t.Setenv("REPORTFETCH_LOG_LEVEL", "error")
}

func serve(contentType string, body []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}
}

func TestFetch_CSV(t *testing.T) {
	upstream(t, serve("text/csv", []byte("a,b\n1,2")))
	dir := t.TempDir()

	r := run(t, t.Context(), "fetch", "--request-id", "r1", "--type", "summary", "--file-name", "report", "--out", dir)
	if r.err != nil {
		t.Fatalf("fetch: %v\nstderr: %s", r.err, r.stderr)
	}

	data, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "a,b\n1,2" {
		t.Fatalf("artifact = %q", data)
	}

	if !strings.Contains(r.stdout, "report.csv downloaded successfully (7 B)") {
		t.Fatalf("stdout = %q", r.stdout)
	}
	if !strings.Contains(r.stderr, "r1/1 saving") {
		t.Fatalf("expected progress on stderr: %q", r.stderr)
	}
}

func TestFetch_QuietClassicBase64Zip(t *testing.T) {
	upstream(t, serve("application/zip", []byte(base64.StdEncoding.EncodeToString(zipBytes))))
	dir := t.TempDir()

	r := run(t, t.Context(), "fetch", "-r", "r2", "--part", "2", "--out", dir, "--classic", "-q")
	if r.err != nil {
		t.Fatalf("fetch: %v\nstderr: %s", r.err, r.stderr)
	}

	data, err := os.ReadFile(filepath.Join(dir, "r2.zip"))
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if !bytes.Equal(data, zipBytes) {
		t.Fatalf("artifact = % x", data)
	}
	if r.stderr != "" {
		t.Fatalf("quiet fetch wrote to stderr: %q", r.stderr)
	}
}

func TestFetch_Bucket(t *testing.T) {
	upstream(t, serve("text/csv", []byte("x")))
	dir := t.TempDir()

	r := run(t, t.Context(), "fetch", "-r", "r3", "-q", "--bucket", "file://"+filepath.ToSlash(dir))
	if r.err != nil {
		t.Fatalf("fetch: %v\nstderr: %s", r.err, r.stderr)
	}

	if _, err := os.Stat(filepath.Join(dir, "r3.csv")); err != nil {
		t.Fatalf("expected artifact in bucket dir: %v", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	upstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	r := run(t, t.Context(), "fetch", "-r", "r1", "-q", "--out", t.TempDir())

	if r.code() != exitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", r.code(), exitFailure, r.err)
	}
	if r.err.Error() != "Error 500: Internal Server Error" {
		t.Fatalf("message = %q", r.err.Error())
	}
}

func TestFetch_InvalidPart(t *testing.T) {
	upstream(t, serve("text/csv", []byte("x")))

	r := run(t, t.Context(), "fetch", "-r", "r1", "--part", "0", "-q", "--out", t.TempDir())

	if r.code() != exitFailure {
		t.Fatalf("exit code = %d, want %d", r.code(), exitFailure)
	}
	if r.err.Error() != "Part must be a valid number (at least 1)" {
		t.Fatalf("message = %q", r.err.Error())
	}
}

func TestFetch_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("mode: turbo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, t.Context(), "--config", path, "fetch", "-r", "r1")

	if r.code() != exitUsage {
		t.Fatalf("exit code = %d, want %d (%v)", r.code(), exitUsage, r.err)
	}
}

func TestBatch(t *testing.T) {
	upstream(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			RequestID string `json:"request-id"`
		}
		if err := jsonDecode(r, &body); err != nil || body.RequestID == "missing" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		serve("text/csv", []byte(body.RequestID))(w, r)
	})
	dir := t.TempDir()

	list := filepath.Join(t.TempDir(), "batch.yaml")
	content := `requests:
  - requestId: r1
    type: summary
    fileName: first
  - requestId: r2
    part: 2
  - requestId: missing
`
	if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, t.Context(), "batch", "--out", dir, "-q", "--concurrency", "2", list)

	if r.code() != exitFailure {
		t.Fatalf("exit code = %d, want %d (%v)", r.code(), exitFailure, r.err)
	}
	if r.err.Error() != "1 of 3 downloads failed" {
		t.Fatalf("message = %q", r.err.Error())
	}
	if !strings.Contains(r.stderr, "missing part 1 failed: Error 404: Not Found") {
		t.Fatalf("stderr = %q", r.stderr)
	}

	for name, want := range map[string]string{"first.csv": "r1", "r2-part2.csv": "r2"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("reading %s: %v", name, err)
		}
		if string(data) != want {
			t.Fatalf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestBatch_JSONFile(t *testing.T) {
	upstream(t, serve("text/csv", []byte("x")))
	dir := t.TempDir()

	list := filepath.Join(t.TempDir(), "batch.json")
	if err := os.WriteFile(list, []byte(`{"requests":[{"requestId":"j1","fileName":"j"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, t.Context(), "batch", "--out", dir, "-q", list)
	if r.err != nil {
		t.Fatalf("batch: %v\nstderr: %s", r.err, r.stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "j.csv")); err != nil {
		t.Fatalf("expected j.csv: %v", err)
	}
}

func TestBatch_BadFile(t *testing.T) {
	tests := map[string]string{
		"unknown field": "requests:\n  - requestID: r1\n",
		"empty":         "requests: []\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			list := filepath.Join(t.TempDir(), "batch.yaml")
			if err := os.WriteFile(list, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}

			r := run(t, t.Context(), "batch", list)
			if r.code() != exitUsage {
				t.Fatalf("exit code = %d, want %d (%v)", r.code(), exitUsage, r.err)
			}
		})
	}

	if r := run(t, t.Context(), "batch"); r.code() != exitUsage {
		t.Fatalf("missing FILE: exit code = %d, want %d", r.code(), exitUsage)
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.zip")
	bad := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(good, zipBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("not an archive"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, t.Context(), "verify", good)
	if r.err != nil {
		t.Fatalf("verify good: %v", r.err)
	}
	if !strings.Contains(r.stdout, "good.zip: ok (22 B)") {
		t.Fatalf("stdout = %q", r.stdout)
	}

	r = run(t, t.Context(), "verify", good, bad, filepath.Join(dir, "absent.zip"))
	if r.code() != exitFailure {
		t.Fatalf("exit code = %d, want %d", r.code(), exitFailure)
	}
	if r.err.Error() != "2 of 3 files failed verification" {
		t.Fatalf("message = %q", r.err.Error())
	}
	if !strings.Contains(r.stdout, "bad.zip: not a zip archive") {
		t.Fatalf("stdout = %q", r.stdout)
	}
}

func TestVerify_Bucket(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.zip"), zipBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	r := run(t, t.Context(), "verify", "--bucket", "file://"+filepath.ToSlash(dir), "a.zip")
	if r.err != nil {
		t.Fatalf("verify: %v\nstderr: %s", r.err, r.stderr)
	}
	if !strings.Contains(r.stdout, "a.zip: ok") {
		t.Fatalf("stdout = %q", r.stdout)
	}
}

func TestServe(t *testing.T) {
	upstream(t, serve("text/csv", []byte("a,b")))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan result, 1)
	go func() {
		done <- run(t, ctx, "serve", "--addr", addr)
	}()

	base := "http://" + addr
	waitFor(t, base+"/healthz")

	resp, err := http.Get(base + "/v1/reports/r1/parts/1?type=summary&fileName=report")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=report.csv" {
		t.Fatalf("Content-Disposition = %q", got)
	}

	cancel()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("serve: %v", r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func waitFor(t *testing.T, url string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(25 * time.Millisecond)
	}

	t.Fatalf("%s not ready", url)
}

func TestPrinter_Throttles(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf)
	p.interval = time.Hour

	for i := range 10 {
		p.print("r1/1", progressAt("downloading", int64(i), 10*i))
	}
	p.print("r1/1", progressAt("downloading", 10, 100))
	p.print("r1/1", progressAt("saving", 10, 100))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want first, final and stage change:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[2], "saving") || !strings.Contains(lines[2], "100%") {
		t.Fatalf("last line = %q", lines[2])
	}
}
