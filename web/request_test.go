package web_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/adamwoolhether/reportfetch/validate"
	"github.com/adamwoolhether/reportfetch/web"
)

func TestParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/reports/r1/parts/2", nil)
	r.SetPathValue("requestID", "r1")

	got, err := web.Param(r, "requestID")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "r1" {
		t.Fatalf("got %q, want %q", got, "r1")
	}

	if _, err := web.Param(r, "missing"); err == nil {
		t.Fatal("expected error for missing param")
	}
}

func TestParamInt(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"valid", "3", 3, false},
		{"not a number", "third", 0, true},
		{"missing", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.value != "" {
				r.SetPathValue("part", tt.value)
			}

			got, err := web.ParamInt(r, "part")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?type=detail", nil)

	if got := web.QueryString(r, "type", "report"); got != "detail" {
		t.Fatalf("got %q, want %q", got, "detail")
	}
	if got := web.QueryString(r, "fileName", "r1"); got != "r1" {
		t.Fatalf("got %q, want default %q", got, "r1")
	}
}

type decodeTarget struct {
	RequestID string `json:"requestId" validate:"required"`
	Part      int    `json:"part" validate:"min=1"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields bool
		wantErr    bool
	}{
		{name: "valid", body: `{"requestId":"r1","part":1}`},
		{name: "invalid json", body: `{"requestId":`, wantErr: true},
		{name: "unknown field", body: `{"requestId":"r1","part":1,"x":true}`, wantErr: true},
		{name: "fails validation", body: `{"part":0}`, wantErr: true, wantFields: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var v decodeTarget
			err := web.Decode(r, &v)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := validate.IsFieldErrors(err); got != tt.wantFields {
				t.Fatalf("IsFieldErrors = %v, want %v (%v)", got, tt.wantFields, err)
			}
		})
	}
}

func TestDecode_BodyTooLarge(t *testing.T) {
	body := `{"requestId":"` + strings.Repeat("a", 2<<20) + `","part":1}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

	var v decodeTarget
	err := web.Decode(r, &v)
	if _, ok := errors.AsType[*http.MaxBytesError](err); !ok {
		t.Fatalf("expected *http.MaxBytesError, got %v", err)
	}
}
