package download

import (
	"errors"
	"fmt"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrTruncated             = errors.New("stream truncated")
	ErrEncoding              = errors.New("malformed base64 payload")
	ErrDownloadCancelled     = errors.New("download cancelled")
	ErrNilMaterializer       = errors.New("materializer must not be nil")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is a payload plus the content type the server declared for it.
// Exactly one stage owns an Envelope at a time; a stage that derives a new
// buffer from it releases the old one.
type Envelope struct {
	Bytes          []byte
	ContentType    string
	DeclaredLength int64 // -1 when unknown.
}

// Len returns the number of payload bytes held.
func (e *Envelope) Len() int64 {
	if e == nil {
		return 0
	}
	return int64(len(e.Bytes))
}

// Release drops the buffer so it can be reclaimed. Safe to call repeatedly.
func (e *Envelope) Release() {
	if e == nil {
		return
	}
	e.Bytes = nil
}
