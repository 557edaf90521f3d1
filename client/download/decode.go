package download

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"runtime"
)

const (
	sniffLen = 100

	decodeWindow = 1 << 20 // 1MiB of base64 characters per pass.
	largeWindow  = 4 << 20
	largePayload = 100 << 20
	yieldEvery   = 10 << 20
)

var base64Text = regexp.MustCompile(`^[A-Za-z0-9+/]*={0,2}$`)

// LooksBase64 reports whether buf appears to be base64 text rather than
// binary. Only the first 100 non-whitespace bytes are inspected. An empty
// buffer counts as base64.
func LooksBase64(buf []byte) bool {
	var prefix [sniffLen]byte
	n := 0
	for _, b := range buf {
		if isSpace(b) {
			continue
		}
		prefix[n] = b
		n++
		if n == sniffLen {
			break
		}
	}

	return base64Text.Match(prefix[:n])
}

// DecodeBase64 decodes the base64 text held by env and returns a new
// Envelope with the raw bytes; env is released. Whitespace anywhere in the
// text is ignored. Decoding runs over bounded windows so the only large
// allocation is the output, sized from the input length. Payloads above
// 100MiB use wider windows and yield the processor every ~10MiB.
//
// Invalid input fails with ErrEncoding. ctx is checked before every window.
func DecodeBase64(ctx context.Context, env *Envelope, m *Meter) (*Envelope, error) {
	src := env.Bytes[:compactSpace(env.Bytes)]

	window := decodeWindow
	if len(src) > largePayload {
		window = largeWindow
	}

	out, err := decodeWindows(ctx, src, window, m)
	if err != nil {
		return nil, err
	}

	decoded := Envelope{
		Bytes:          out,
		ContentType:    env.ContentType,
		DeclaredLength: -1,
	}
	env.Release()
	m.Usage(StageDecoding, decoded.Len())

	return &decoded, nil
}

// decodeWindows decodes src window characters at a time. window must be a
// multiple of 4 so every window but the last is a whole number of quanta.
func decodeWindows(ctx context.Context, src []byte, window int, m *Meter) ([]byte, error) {
	enc := base64.StdEncoding
	if len(src)%4 != 0 {
		enc = base64.RawStdEncoding
	}

	out := make([]byte, enc.DecodedLen(len(src)))
	m.Usage(StageDecoding, int64(len(src)+cap(out)))

	var written, lastYield int
	for off := 0; off < len(src); off += window {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}

		end := min(off+window, len(src))
		chunkEnc := base64.StdEncoding
		if end == len(src) && (end-off)%4 != 0 {
			chunkEnc = base64.RawStdEncoding
		}

		n, err := chunkEnc.Decode(out[written:], src[off:end])
		if err != nil {
			var corrupt base64.CorruptInputError
			if errors.As(err, &corrupt) {
				return nil, &Error{
					Err:    ErrEncoding,
					Detail: fmt.Sprintf("illegal base64 data at input byte %d", off+int(corrupt)),
				}
			}
			return nil, &Error{Err: ErrEncoding, Detail: err.Error()}
		}
		written += n

		m.Stage(StageDecoding, int64(end), int64(len(src)))

		if len(src) > largePayload && end-lastYield >= yieldEvery {
			lastYield = end
			runtime.Gosched()
		}
	}

	if len(src) == 0 {
		m.Stage(StageDecoding, 0, 0)
	}

	return out[:written], nil
}

// compactSpace removes whitespace from b in place and returns the new length.
func compactSpace(b []byte) int {
	n := 0
	for _, c := range b {
		if isSpace(c) {
			continue
		}
		b[n] = c
		n++
	}
	return n
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
