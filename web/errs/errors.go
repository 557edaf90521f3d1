// Package errs carries the status code and public message of a failed
// gateway request through the handler chain.
package errs

import (
	"fmt"
	"net/http"
	"runtime"
)

// Error is a failure that should be reported to the caller with Code.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	FuncName string `json:"-"`
	FileName string `json:"-"`
	InnerErr bool   `json:"-"`
}

// New constructs an error whose message is safe to show to callers.
func New(code int, err error) *Error {
	return newAt(code, err, false)
}

// NewInternal constructs an error that is logged in full but reported to
// callers only as the status text of a 500.
func NewInternal(err error) *Error {
	return newAt(http.StatusInternalServerError, err, true)
}

func newAt(code int, err error, internal bool) *Error {
	pc, filename, line, _ := runtime.Caller(2)

	return &Error{
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		InnerErr: internal,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// IsInternal reports whether the message must be hidden from callers.
func (e *Error) IsInternal() bool {
	return e.InnerErr
}

// Public returns the message callers are allowed to see.
func (e *Error) Public() string {
	if e.InnerErr {
		return http.StatusText(e.Code)
	}

	return e.Message
}
