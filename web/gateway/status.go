package gateway

import (
	"errors"
	"net/http"

	"github.com/adamwoolhether/reportfetch/report"
	"github.com/adamwoolhether/reportfetch/validate"
	"github.com/adamwoolhether/reportfetch/web/errs"
)

// statuses maps a failed download to the status the gateway answers with.
// Failures of the report service or of its payload are the upstream's
// fault and are reported as 502.
var statuses = map[report.Kind]int{
	report.KindServer:             http.StatusBadGateway,
	report.KindNetwork:            http.StatusBadGateway,
	report.KindEncoding:           http.StatusBadGateway,
	report.KindUnsupportedPayload: http.StatusBadGateway,
	report.KindTimeout:            http.StatusGatewayTimeout,
	report.KindCancelled:          http.StatusServiceUnavailable,
	report.KindInvalidRequest:     http.StatusBadRequest,
}

// statusFor converts a Download error into an error the Errors middleware
// can render. Field errors pass through untouched to become a 422.
func statusFor(err error) error {
	if validate.IsFieldErrors(err) {
		return err
	}

	rerr, ok := errors.AsType[*report.Error](err)
	if !ok {
		return errs.NewInternal(err)
	}

	code, ok := statuses[rerr.Kind]
	if !ok {
		return errs.NewInternal(err)
	}

	return errs.New(code, errors.New(report.Message(rerr)))
}
