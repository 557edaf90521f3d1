package middleware

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/adamwoolhether/reportfetch/web"
	"github.com/adamwoolhether/reportfetch/web/errs"
	"github.com/adamwoolhether/reportfetch/web/mux"
)

var defaultAllowHeaders = []string{
	"Authorization",
	"Content-Type",
	"Accept",
	"Cache-Control",
	mux.CorrelationHeader,
}

// exposeHeaders are readable by browser callers; the file name of a
// download travels in Content-Disposition.
var exposeHeaders = strings.Join([]string{
	"Content-Disposition",
	"Content-Length",
	mux.CorrelationHeader,
}, ", ")

// CORS admits cross-origin requests from allowedOrigins, which may hold
// path.Match wildcards or "*" for any origin. Requests without an Origin
// header pass through untouched. allowedHeaders replaces the default list
// when given.
func CORS(allowedOrigins []string, allowedHeaders ...string) mux.Middleware {
	if len(allowedHeaders) == 0 {
		allowedHeaders = defaultAllowHeaders
	}

	originAllowed := CheckOriginFunc(allowedOrigins)
	headers := strings.Join(allowedHeaders, ", ")

	m := func(handler mux.Handler) mux.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return handler(ctx, w, r)
			}

			if !originAllowed(origin) {
				return web.RespondError(ctx, w, errs.New(http.StatusForbidden, fmt.Errorf("CORS origin[%s] not allowed", origin)))
			}

			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", origin)
			hdr.Set("Vary", "Origin")
			hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			hdr.Set("Access-Control-Allow-Credentials", "true")
			hdr.Set("Access-Control-Max-Age", "86400")
			hdr.Set("Access-Control-Allow-Headers", headers)
			hdr.Set("Access-Control-Expose-Headers", exposeHeaders)

			if r.Method == http.MethodOptions {
				return web.RespondJSON(ctx, w, http.StatusNoContent, nil)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// CheckOriginFunc returns a predicate for origins in allowedOrigins.
// Entries may themselves be comma-separated lists.
func CheckOriginFunc(allowedOrigins []string) func(string) bool {
	allowed := make(map[string]bool)
	var wildcards []string

	for _, entry := range allowedOrigins {
		for o := range strings.SplitSeq(entry, ",") {
			o = strings.TrimSpace(o)
			switch {
			case o == "":
			case o == "*":
				allowed["*"] = true
			case strings.Contains(o, "*"):
				wildcards = append(wildcards, o)
			default:
				allowed[o] = true
			}
		}
	}
	allowAll := allowed["*"]

	return func(origin string) bool {
		if allowAll || allowed[origin] {
			return true
		}
		for _, w := range wildcards {
			if ok, err := path.Match(w, origin); ok && err == nil {
				return true
			}
		}
		return false
	}
}
