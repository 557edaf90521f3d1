package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the read size used by a stream Source.
const DefaultChunkSize = 64 << 10 // 64KB

// Source yields the payload of one response as a lazy, finite sequence of
// chunks. Next returns io.EOF once the body is exhausted; a Source cannot be
// restarted. The returned slice is only valid until the following call.
type Source interface {
	Next() ([]byte, error)
	Declared() int64
}

// contextReader fails reads once ctx is done so a cancelled download stops
// consuming the body at the next chunk boundary.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}

// streamSource reads the body one chunk at a time.
type streamSource struct {
	r        io.Reader
	buf      []byte
	declared int64
	meter    *Meter
	pending  error
	done     bool
}

// NewStreamSource returns a Source reading body in chunks of chunkSize bytes
// (DefaultChunkSize if <= 0). declared is the Content-Length, or -1. Every
// chunk is reported to m.
func NewStreamSource(ctx context.Context, body io.Reader, declared int64, m *Meter, chunkSize int) Source {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if declared < 0 {
		declared = -1
	}

	return &streamSource{
		r:        &contextReader{ctx: ctx, r: body},
		buf:      make([]byte, chunkSize),
		declared: declared,
		meter:    m,
	}
}

func (s *streamSource) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}

	for {
		var n int
		err := s.pending
		s.pending = nil
		if err == nil {
			n, err = s.r.Read(s.buf)
		}

		if n > 0 {
			s.meter.Received(n)
			s.pending = err // surfaced on the next call
			return s.buf[:n], nil
		}
		if err == nil {
			continue
		}

		s.done = true
		s.buf = nil
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading body: %w", err)
	}
}

func (s *streamSource) Declared() int64 { return s.declared }

// bufferedSource is the non-streaming variant: the whole body is read on the
// first call to Next and handed over as a single chunk.
type bufferedSource struct {
	ctx      context.Context
	r        io.Reader
	declared int64
	meter    *Meter
	done     bool
}

// NewBufferedSource returns a Source that reads the entire body before
// yielding it. It honours the same contract as NewStreamSource and reports
// progress as the read proceeds.
func NewBufferedSource(ctx context.Context, body io.Reader, declared int64, m *Meter) Source {
	if declared < 0 {
		declared = -1
	}

	return &bufferedSource{
		ctx:      ctx,
		r:        body,
		declared: declared,
		meter:    m,
	}
}

func (s *bufferedSource) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.done = true

	var buf bytes.Buffer
	if s.declared > 0 {
		buf.Grow(int(min(s.declared, maxPrealloc)))
	}

	w := &meterWriter{w: &buf, m: s.meter}
	if _, err := io.Copy(w, &contextReader{ctx: s.ctx, r: s.r}); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if buf.Len() == 0 {
		return nil, io.EOF
	}

	return buf.Bytes(), nil
}

func (s *bufferedSource) Declared() int64 { return s.declared }

// meterWriter reports every write to the Meter.
type meterWriter struct {
	w io.Writer
	m *Meter
}

func (mw *meterWriter) Write(p []byte) (int, error) {
	n, err := mw.w.Write(p)
	mw.m.Received(n)
	return n, err
}
