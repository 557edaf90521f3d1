package download

import (
	"errors"
	"fmt"
	"io"
)

// maxPrealloc bounds the up-front allocation taken on the word of a
// Content-Length header. Larger bodies grow past it as bytes arrive.
const maxPrealloc = 64 << 20

// Accumulate drains src into a single contiguous buffer, preserving arrival
// order. When src declares a length up to maxPrealloc the buffer is allocated
// once up front; otherwise it grows geometrically. Chunks are copied and not
// retained.
//
// Reading past a declared length fails with ErrContentLengthMismatch, and
// ending short of it fails with ErrTruncated.
func Accumulate(src Source, contentType string, m *Meter) (*Envelope, error) {
	declared := src.Declared()

	var buf []byte
	if declared > 0 {
		buf = make([]byte, 0, min(declared, maxPrealloc))
	}

	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if declared >= 0 && int64(len(buf))+int64(len(chunk)) > declared {
			return nil, &Error{
				Err:    ErrContentLengthMismatch,
				Detail: fmt.Sprintf("received more than the declared %d bytes", declared),
			}
		}

		buf = append(buf, chunk...)
		m.Usage(StageDownloading, int64(cap(buf)))
	}

	if declared >= 0 && int64(len(buf)) != declared {
		return nil, &Error{
			Err:    ErrTruncated,
			Detail: fmt.Sprintf("expected %d bytes, got %d", declared, len(buf)),
		}
	}

	env := Envelope{
		Bytes:          buf,
		ContentType:    contentType,
		DeclaredLength: declared,
	}

	return &env, nil
}
