package download

import (
	"mime"
	"strings"
)

var extensions = map[string]string{
	"text/csv":                     ".csv",
	"application/json":             ".json",
	"text/plain":                   ".txt",
	"application/pdf":              ".pdf",
	"application/zip":              ".zip",
	"application/x-zip-compressed": ".zip",
	"application/x-zip":            ".zip",
	"multipart/x-zip":              ".zip",
	"text/html":                    ".html",
	"application/xml":              ".xml",
	"text/xml":                     ".xml",
	"application/octet-stream":     "",
}

// MediaType returns the lower-cased media type of a Content-Type value
// without parameters. Unparseable values are trimmed and lower-cased as is.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}

	return strings.ToLower(strings.TrimSpace(mt))
}

// Extension maps a content type to its canonical file suffix, including the
// leading dot. Unknown types map to "".
func Extension(contentType string) string {
	return extensions[MediaType(contentType)]
}

// IsZip reports whether contentType is one of the ZIP media types.
func IsZip(contentType string) bool {
	return Extension(contentType) == ".zip"
}

// EnsureExtension appends the suffix for contentType to name unless name
// already ends with it, compared case-insensitively.
func EnsureExtension(name, contentType string) string {
	ext := Extension(contentType)
	if ext == "" || strings.HasSuffix(strings.ToLower(name), ext) {
		return name
	}

	return name + ext
}
