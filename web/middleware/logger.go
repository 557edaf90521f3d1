package middleware

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/adamwoolhether/reportfetch/web/mux"
)

// Logger logs the start and end of every request under its trace id. The
// completion line names the report being served and the attachment it was
// saved as, and is raised to warn for 5xx responses.
func Logger(log *slog.Logger) mux.Middleware {
	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := mux.GetValues(ctx)

			attrs := []slog.Attr{
				slog.String("trace_id", v.TraceID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.RequestURI()),
				slog.String("remoteaddr", r.RemoteAddr),
			}
			if id := r.PathValue("requestID"); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}

			log.LogAttrs(ctx, slog.LevelInfo, "request started", attrs...)

			err := handler(ctx, w, r)

			level := slog.LevelInfo
			if v.StatusCode >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}

			done := append(attrs,
				slog.Int("statusCode", v.StatusCode),
				slog.String("since", time.Since(v.Now).String()),
			)
			if name := attachment(w.Header()); name != "" {
				done = append(done, slog.String("attachment", name))
			}

			log.LogAttrs(ctx, level, "request completed", done...)

			return err
		}

		return h
	}

	return m
}

func attachment(h http.Header) string {
	disp, params, err := mime.ParseMediaType(h.Get("Content-Disposition"))
	if err != nil || disp != "attachment" {
		return ""
	}

	return params["filename"]
}
