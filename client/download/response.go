package download

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strconv"
)

// ResponseMaterializer streams the payload back to an HTTP client as a file
// attachment. It must be the only writer to W.
type ResponseMaterializer struct {
	W http.ResponseWriter
}

func (rm ResponseMaterializer) Materialize(ctx context.Context, name string, env *Envelope) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	}

	contentType := env.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := rm.W.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(env.Bytes)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	rm.W.WriteHeader(http.StatusOK)

	if _, err := rm.W.Write(env.Bytes); err != nil {
		return "", fmt.Errorf("writing response: %w", err)
	}

	return name, nil
}
