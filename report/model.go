package report

import (
	"fmt"

	"github.com/adamwoolhether/reportfetch/client/download"
)

// ReportType selects which rendition of a report the server produces.
type ReportType string

const (
	TypeSummary ReportType = "summary"
	TypeDetail  ReportType = "detail"
	TypeReport  ReportType = "report"
)

// DownloadRequest identifies one part of a generated report and the name
// it should be saved under. FileName gets an extension matching the
// response's content type if it lacks one.
type DownloadRequest struct {
	RequestID  string     `json:"requestId" validate:"required"`
	ReportType ReportType `json:"type" validate:"required,oneof=summary detail report"`
	Part       int        `json:"part" validate:"min=1"`
	FileName   string     `json:"fileName" validate:"required"`
}

// Body is the JSON document POSTed to the report endpoint.
type Body struct {
	RequestID string     `json:"request-id"`
	Type      ReportType `json:"type"`
	Part      int        `json:"part"`
}

func newBody(req DownloadRequest) Body {
	return Body{
		RequestID: req.RequestID,
		Type:      req.ReportType,
		Part:      req.Part,
	}
}

// Artifact describes a report that was downloaded and saved.
type Artifact struct {
	FileName     string
	ByteSize     int64
	ContentType  string
	Location     string
	Checksum     string // hex SHA-256 of the saved bytes.
	DetectedType string // sniffed from the payload.
	Decoded      bool   // the payload arrived base64 wrapped.
	Warnings     []error
}

// State is a step of a Downloader's state machine.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateReceiving
	StateDecoding
	StateValidating
	StateSaving
	StateCompleted
	StateFailed
	StateCancelled
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateRequesting: "requesting",
	StateReceiving:  "receiving",
	StateDecoding:   "decoding",
	StateValidating: "validating",
	StateSaving:     "saving",
	StateCompleted:  "completed",
	StateFailed:     "failed",
	StateCancelled:  "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress is re-exported so callers need not import the download package
// to write a progress callback.
type Progress = download.Progress

// ProgressFunc receives progress for a single download.
type ProgressFunc = download.ProgressFunc
