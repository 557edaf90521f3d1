package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/adamwoolhether/reportfetch/validate"
	"github.com/adamwoolhether/reportfetch/web"
	"github.com/adamwoolhether/reportfetch/web/errs"
	"github.com/adamwoolhether/reportfetch/web/mux"
)

// Errors turns handler errors into JSON responses. Validation failures
// become a 422 listing the offending fields; *errs.Error uses its code;
// anything else is logged and hidden behind a 500. If the handler already
// started the response the error is only logged.
func Errors(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			reqLog := log.With("trace_id", mux.GetTraceID(ctx))

			if mux.Committed(ctx) {
				reqLog.Error("error after response started", "error", err)
				return nil
			}

			if fieldErrs, ok := errors.AsType[validate.FieldErrors](err); ok {
				reqLog.Info("request rejected", "fields", fieldErrs.Fields())
				return web.RespondJSON(ctx, w, http.StatusUnprocessableEntity, fieldErrs)
			}

			appErr, ok := errors.AsType[*errs.Error](err)
			if !ok {
				appErr = errs.NewInternal(err)
			}

			reqLog.Error(err.Error(), "status", appErr.Code, "source_err_file", path.Base(appErr.FileName), "source_err_func", path.Base(appErr.FuncName))

			return web.RespondError(ctx, w, appErr)
		}

		return h
	}

	return m
}
