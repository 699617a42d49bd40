package l33t

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meigma/gamefiles/internal/atomicfile"
	"github.com/meigma/gamefiles/internal/stream"
)

// CompressFile writes a container holding the contents of in to out.
//
// out is replaced atomically; on any failure, including cancellation, no
// partial output is left behind.
func CompressFile(ctx context.Context, in, out string, opts ...Option) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	err = atomicfile.Write(out, func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, stream.BufferSize)
		if _, err := Encode(ctx, bw, src, info.Size(), opts...); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("l33t: compress %s: %w", in, err)
	}
	return nil
}

// DecompressFile writes the payload of the container in to out.
//
// out is replaced atomically; on any failure, including cancellation, no
// partial output is left behind.
func DecompressFile(ctx context.Context, in, out string, opts ...Option) error {
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	defer src.Close()

	err = atomicfile.Write(out, func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, stream.BufferSize)
		if _, err := Decode(ctx, bw, bufio.NewReaderSize(src, stream.BufferSize), opts...); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("l33t: decompress %s: %w", in, err)
	}
	return nil
}
