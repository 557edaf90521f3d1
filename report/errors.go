package report

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/adamwoolhether/reportfetch/client"
	"github.com/adamwoolhether/reportfetch/client/download"
	"github.com/adamwoolhether/reportfetch/validate"
)

// Kind categorises a failed download.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindServer
	KindTimeout
	KindEncoding
	KindCancelled
	KindUnsupportedPayload
	KindStorage
	KindInvalidRequest
)

var (
	ErrNetwork            = errors.New("network error")
	ErrServer             = errors.New("server error")
	ErrTimeout            = errors.New("download timed out")
	ErrEncoding           = errors.New("encoding error")
	ErrCancelled          = errors.New("download cancelled")
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrStorage            = errors.New("storage error")
	ErrInvalidRequest     = errors.New("invalid download request")

	// ErrInFlight is returned when Download is called on a Downloader that
	// is already running one.
	ErrInFlight = errors.New("download already in progress")

	// ErrBadSignature is wrapped by ValidationWarning.
	ErrBadSignature = errors.New("invalid archive signature")
)

var kindErrs = map[Kind]error{
	KindNetwork:            ErrNetwork,
	KindServer:             ErrServer,
	KindTimeout:            ErrTimeout,
	KindEncoding:           ErrEncoding,
	KindCancelled:          ErrCancelled,
	KindUnsupportedPayload: ErrUnsupportedPayload,
	KindStorage:            ErrStorage,
	KindInvalidRequest:     ErrInvalidRequest,
}

func (k Kind) String() string {
	if err, ok := kindErrs[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the single categorised error a failed Download returns. It
// matches its kind's sentinel with errors.Is and unwraps to the cause.
type Error struct {
	Kind       Kind
	Status     int    // set for KindServer.
	StatusText string // set for KindServer.
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindServer {
		return fmt.Sprintf("%v: %d %s", e.Kind, e.Status, e.StatusText)
	}
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == kindErrs[e.Kind]
}

// ValidationWarning flags an archive whose leading bytes are not a ZIP
// signature. The artifact is still saved.
type ValidationWarning struct {
	FileName string
	Prefix   []byte
}

func (w *ValidationWarning) Error() string {
	return fmt.Sprintf("%s: %v (leading bytes % x)", w.FileName, ErrBadSignature, w.Prefix)
}

func (w *ValidationWarning) Unwrap() error {
	return ErrBadSignature
}

var errUnsupportedEncoding = errors.New("unsupported content encoding")

// classify maps a pipeline failure to an *Error. ctx is the attempt's own
// context, consulted first so a cancelled or expired attempt is reported as
// such whatever error the interrupted stage produced. fallback is used when
// nothing more specific matches.
func classify(ctx context.Context, err error, fallback Kind) *Error {
	if e, ok := errors.AsType[*Error](err); ok {
		return e
	}

	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case ctxErr != nil:
		return &Error{Kind: KindCancelled, Err: err}
	}

	if statusErr, ok := errors.AsType[*client.UnexpectedStatusError](err); ok {
		return &Error{
			Kind:       KindServer,
			Status:     statusErr.StatusCode,
			StatusText: statusErr.Status,
			Err:        err,
		}
	}

	switch {
	case validate.IsFieldErrors(err):
		return &Error{Kind: KindInvalidRequest, Err: err}
	case errors.Is(err, download.ErrEncoding):
		return &Error{Kind: KindEncoding, Err: err}
	case errors.Is(err, errUnsupportedEncoding):
		return &Error{Kind: KindUnsupportedPayload, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, download.ErrDownloadCancelled):
		return &Error{Kind: KindCancelled, Err: err}
	case errors.Is(err, download.ErrTruncated), errors.Is(err, download.ErrContentLengthMismatch):
		return &Error{Kind: KindNetwork, Err: err}
	}

	if netErr, ok := errors.AsType[net.Error](err); ok && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}

	return &Error{Kind: fallback, Err: err}
}

// Message renders err as a single line suitable for showing to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInFlight) {
		return "A download is already in progress"
	}

	e, ok := errors.AsType[*Error](err)
	if !ok {
		return err.Error()
	}

	switch e.Kind {
	case KindServer:
		text := e.StatusText
		if text == "" {
			text = http.StatusText(e.Status)
		}
		return fmt.Sprintf("Error %d: %s", e.Status, text)
	case KindNetwork:
		return "Unable to connect to the server"
	case KindTimeout:
		return "Download timed out: the file is too large or the connection is slow"
	case KindCancelled:
		return "Download cancelled"
	case KindEncoding:
		return "Invalid base64 format in ZIP data"
	case KindUnsupportedPayload:
		return "Unsupported response data type"
	case KindStorage:
		return fmt.Sprintf("Failed to save file: %v", e.Err)
	case KindInvalidRequest:
		fields := validate.GetFieldErrors(e).Fields()
		_, noID := fields["requestId"]
		_, noName := fields["fileName"]
		_, badPart := fields["part"]
		switch {
		case noID || noName:
			return "Request ID and File Name are required"
		case badPart:
			return "Part must be a valid number (at least 1)"
		case len(fields) > 0:
			return "Invalid download request: " + validate.GetFieldErrors(e).Error()
		}
		return "Invalid download request"
	}

	return "An unknown error occurred"
}
