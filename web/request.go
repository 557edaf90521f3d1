// Package web holds the request and response helpers shared by the
// gateway's handlers and middleware.
package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adamwoolhether/reportfetch/validate"
)

// maxBody caps JSON request bodies; download requests are a few fields.
const maxBody = 1 << 20

// Param returns the path parameter key.
func Param(r *http.Request, key string) (string, error) {
	val := r.PathValue(key)
	if val == "" {
		return "", fmt.Errorf("path param[%s] not found", key)
	}

	return val, nil
}

// ParamInt returns the path parameter key parsed as an int.
func ParamInt(r *http.Request, key string) (int, error) {
	val, err := Param(r, key)
	if err != nil {
		return 0, err
	}

	v, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("path param[%s] must be integer: %w", key, err)
	}

	return v, nil
}

// QueryString returns the query parameter key, or def when it is absent.
func QueryString(r *http.Request, key, def string) string {
	if val := r.URL.Query().Get(key); val != "" {
		return val
	}

	return def
}

// Decode reads a JSON document from the request body into val, rejecting
// unknown fields, then checks val's validation tags.
func Decode[T any](r *http.Request, val *T) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	return validate.Check(val)
}
