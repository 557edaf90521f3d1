package middleware

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/adamwoolhether/reportfetch/web/mux"
)

// Panics recovers a panicking handler and returns the panic, with its
// stack, as an error for Errors to log and hide behind a 500.
func Panics() mux.Middleware {
	return func(handler mux.Handler) mux.Handler {
		return func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err = fmt.Errorf("panic serving %s: %v\n%s", r.URL.Path, rec, debug.Stack())
			}()

			return handler(ctx, w, r)
		}
	}
}
