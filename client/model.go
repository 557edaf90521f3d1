package client

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// maxErrBodySize caps the amount of response body read when
	// building an error for an unexpected status code.
	maxErrBodySize = 4 << 10 // 4KB

	// maxDrainSize caps how much of an unread body is drained so the
	// connection can be reused; anything larger is simply closed.
	maxDrainSize = 256 << 10 // 256KB
)

// StreamFunc consumes a successful response.
type StreamFunc func(resp *http.Response) error

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// UnexpectedStatusError is returned when the server answers with a
// non-2xx status.
type UnexpectedStatusError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d %s, body: %s", e.Err, e.StatusCode, e.Status, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
