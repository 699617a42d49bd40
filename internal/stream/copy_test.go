package stream

import (
	"bytes"
	"context"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gamefiles/internal/binio"
)

// limitedChunkReader returns at most chunk bytes per Read.
type limitedChunkReader struct {
	r     io.Reader
	chunk int
	reads int
}

func (c *limitedChunkReader) Read(p []byte) (int, error) {
	c.reads++
	if len(p) > c.chunk {
		p = p[:c.chunk]
	}
	return c.r.Read(p)
}

func TestCopyExact(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789"), 100)
	tests := []struct {
		name    string
		bufSize int
		n       int64
	}{
		{name: "buffer smaller than count", bufSize: 7, n: 500},
		{name: "buffer equal to count", bufSize: 500, n: 500},
		{name: "buffer larger than count", bufSize: 4096, n: 500},
		{name: "zero count", bufSize: 16, n: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := bytes.NewReader(data)
			var dst bytes.Buffer
			n, err := CopyExact(context.Background(), &dst, src, tt.n, make([]byte, tt.bufSize), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)
			assert.True(t, bytes.Equal(data[:tt.n], dst.Bytes()), "copied bytes differ")
			// the source must not be read past the requested count
			assert.Equal(t, int64(len(data))-tt.n, int64(src.Len()))
		})
	}
}

func TestCopyExactShortReads(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xAB}, 1000)
	src := &limitedChunkReader{r: bytes.NewReader(data), chunk: 3}
	var dst bytes.Buffer
	n, err := CopyExact(context.Background(), &dst, src, 1000, make([]byte, 64), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), n)
	assert.Equal(t, data, dst.Bytes())
}

func TestCopyExactTruncated(t *testing.T) {
	t.Parallel()

	var dst bytes.Buffer
	n, err := CopyExact(context.Background(), &dst, bytes.NewReader([]byte("abc")), 10, nil, nil)
	require.ErrorIs(t, err, binio.ErrTruncated)
	assert.Equal(t, int64(3), n)
}

func TestCopyExactDataErr(t *testing.T) {
	t.Parallel()

	var dst bytes.Buffer
	src := iotest.DataErrReader(bytes.NewReader([]byte("abcdef")))
	n, err := CopyExact(context.Background(), &dst, src, 6, make([]byte, 6), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestCopyExactCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var dst bytes.Buffer
	_, err := CopyExact(ctx, &dst, bytes.NewReader([]byte("abc")), 3, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dst.Len())
}

func TestCopyExactProgress(t *testing.T) {
	t.Parallel()

	var reports []int64
	var dst bytes.Buffer
	_, err := CopyExact(context.Background(), &dst, bytes.NewReader(make([]byte, 10)), 10, make([]byte, 4), func(done int64) {
		reports = append(reports, done)
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 8, 10}, reports)
}

func TestCountingWriter(t *testing.T) {
	t.Parallel()

	cw := &CountingWriter{W: io.Discard}
	_, err := cw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cw.N)
}
