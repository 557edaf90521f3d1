package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adamwoolhether/reportfetch/web/errs"
	"github.com/adamwoolhether/reportfetch/web/mux"
)

// RespondJSON writes data as JSON with statusCode. A 204 has no body.
func RespondJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) error {
	mux.SetStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_, err = w.Write(jsonData)
	return err
}

// RespondError writes err's code and public message.
func RespondError(ctx context.Context, w http.ResponseWriter, err *errs.Error) error {
	body := struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}{
		Code:    err.Code,
		Message: err.Public(),
	}

	return RespondJSON(ctx, w, err.Code, body)
}
