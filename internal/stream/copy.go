// Package stream holds the chunked copy loops used by the codecs.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/meigma/gamefiles/internal/binio"
)

// BufferSize is the chunk size used for copies and the cancellation
// granularity of every streaming operation.
const BufferSize = 80 << 10

// ErrOverflow indicates a counter exceeded its maximum value.
var ErrOverflow = errors.New("counter overflow")

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, BufferSize)
		return &b
	},
}

// GetBuffer returns a pooled BufferSize byte slice. Release it with PutBuffer.
func GetBuffer() *[]byte {
	return bufPool.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
}

// PutBuffer returns a buffer obtained from GetBuffer to the pool.
func PutBuffer(b *[]byte) {
	if b == nil || len(*b) != BufferSize {
		return
	}
	bufPool.Put(b)
}

// ProgressFunc receives the cumulative number of bytes copied.
type ProgressFunc func(done int64)

// CopyExact copies exactly n bytes from src to dst in chunks of at most
// len(buf) bytes. Each read is clipped to the remaining count, so src is
// never read past n. Cancellation is checked before every chunk.
//
// If src ends before n bytes, the returned error wraps binio.ErrTruncated.
func CopyExact(ctx context.Context, dst io.Writer, src io.Reader, n int64, buf []byte, progress ProgressFunc) (int64, error) {
	if len(buf) == 0 {
		pooled := GetBuffer()
		defer PutBuffer(pooled)
		buf = *pooled
	}
	var written int64
	for written < n {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		chunk := buf
		if remaining := n - written; remaining < int64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		nr, er := src.Read(chunk)
		if nr > 0 {
			nw, ew := dst.Write(chunk[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if ew != nil {
				return written, ew
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if progress != nil {
				progress(written)
			}
		}
		if er != nil {
			if errors.Is(er, io.EOF) || errors.Is(er, io.ErrUnexpectedEOF) {
				if written < n {
					return written, fmt.Errorf("%w: got %d of %d bytes", binio.ErrTruncated, written, n)
				}
				return written, nil
			}
			return written, er
		}
	}
	return written, nil
}

// CountingWriter wraps a writer and counts bytes written.
type CountingWriter struct {
	W io.Writer
	N uint64
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	if n > 0 {
		//nolint:gosec // n is guaranteed non-negative by io.Writer contract
		if cw.N > ^uint64(0)-uint64(n) {
			return n, ErrOverflow
		}
		cw.N += uint64(n) //nolint:gosec // overflow checked above
	}
	return n, err
}

// ContextReader fails reads once ctx is done.
type ContextReader struct {
	Ctx context.Context //nolint:containedctx // scoped to a single copy
	R   io.Reader
}

// Read implements io.Reader.
func (r *ContextReader) Read(p []byte) (int, error) {
	if err := r.Ctx.Err(); err != nil {
		return 0, err
	}
	return r.R.Read(p)
}
