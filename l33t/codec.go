package l33t

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/gamefiles/internal/sizing"
	"github.com/meigma/gamefiles/internal/stream"
)

// Encode writes a container holding exactly length bytes read from r.
//
// The header tag is chosen from length. r is never read past length bytes;
// if it ends early the error wraps ErrTruncated. Encode returns the number
// of bytes written to w.
func Encode(ctx context.Context, w io.Writer, r io.Reader, length int64, opts ...Option) (int64, error) {
	if length < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrInvalidFormat, length)
	}
	cfg := newConfig(opts)

	hdr, err := NewHeader(length).MarshalBinary()
	if err != nil {
		return 0, err
	}
	cw := &stream.CountingWriter{W: w}
	if _, err := cw.Write(hdr); err != nil {
		return written(cw), err
	}

	fw, release, err := getWriter(cw, cfg.level)
	if err != nil {
		return written(cw), fmt.Errorf("l33t: create deflate writer: %w", err)
	}
	defer release()

	buf := stream.GetBuffer()
	defer stream.PutBuffer(buf)
	if _, err := stream.CopyExact(ctx, fw, r, length, *buf, cfg.report(length)); err != nil {
		return written(cw), err
	}
	if err := fw.Close(); err != nil {
		return written(cw), err
	}
	return written(cw), nil
}

// Decode reads a container from r and writes exactly the declared number of
// uncompressed bytes to w. Decompressed data beyond the declared length and
// compressed bytes after it are ignored.
//
// It returns the number of bytes written to w.
func Decode(ctx context.Context, w io.Writer, r io.Reader, opts ...Option) (int64, error) {
	cfg := newConfig(opts)
	h, err := ReadHeader(r)
	if err != nil {
		return 0, err
	}
	return decodeBody(ctx, w, r, h, cfg)
}

// Compress returns data wrapped in a container.
func Compress(data []byte, opts ...Option) ([]byte, error) {
	var out bytes.Buffer
	out.Grow(len(data)/2 + 16)
	if _, err := Encode(context.Background(), &out, bytes.NewReader(data), int64(len(data)), opts...); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decompress unwraps a container held in memory.
//
// The declared length is checked against the WithMaxSize limit before any
// output is allocated.
func Decompress(data []byte, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	r := bytes.NewReader(data)
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if cfg.maxSize > 0 && h.Length > cfg.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, h.Length, cfg.maxSize)
	}
	size, err := sizing.ToInt(uint64(h.Length), ErrTooLarge) //nolint:gosec // ReadHeader rejects negative lengths
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Grow(min(size, 4*len(data)+64))
	if _, err := decodeBody(context.Background(), &out, r, h, cfg); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func decodeBody(ctx context.Context, w io.Writer, r io.Reader, h Header, cfg config) (int64, error) {
	if h.Length == 0 {
		return 0, nil
	}
	fr, release := getReader(r)
	defer release()

	buf := stream.GetBuffer()
	defer stream.PutBuffer(buf)
	n, err := stream.CopyExact(ctx, w, fr, h.Length, *buf, cfg.report(h.Length))
	if err != nil {
		var corrupt flate.CorruptInputError
		if errors.As(err, &corrupt) {
			return n, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return n, err
	}
	return n, nil
}

func (c config) report(total int64) stream.ProgressFunc {
	if c.progress == nil {
		return nil
	}
	fn := c.progress
	return func(done int64) { fn(done, total) }
}

func written(cw *stream.CountingWriter) int64 {
	return int64(cw.N) //nolint:gosec // bounded by bytes actually written
}
