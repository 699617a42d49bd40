package l33t

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int, seed uint64) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.UintN(256))
	}
	return b
}

func rawDeflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func container(t *testing.T, h Header, body []byte) []byte {
	t.Helper()
	hdr, err := h.MarshalBinary()
	require.NoError(t, err)
	return append(hdr, body...)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "single byte", data: []byte{0x42}},
		{name: "text", data: bytes.Repeat([]byte("<unit name=\"villager\"/>\r\n"), 400)},
		{name: "random larger than a buffer", data: randomBytes(200_000, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			packed, err := Compress(tt.data)
			require.NoError(t, err)
			assert.True(t, IsCompressed(packed))

			got, err := Decompress(packed)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(got))
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, got)
			}
		})
	}
}

func TestCompressLayout(t *testing.T) {
	t.Parallel()

	data := randomBytes(50_000, 1)
	packed, err := Compress(data)
	require.NoError(t, err)

	assert.Equal(t, "l33t", string(packed[:4]))
	assert.Equal(t, uint32(50_000), binary.LittleEndian.Uint32(packed[4:8]))
	assert.Equal(t, []byte{0x78, 0x9C}, packed[8:10])

	got, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestHeaderSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length int64
		tag    string
		size   int
	}{
		{length: 0, tag: TagStandard, size: 10},
		{length: math.MaxInt32, tag: TagStandard, size: 10},
		{length: math.MaxInt32 + 1, tag: TagLong, size: 14},
		{length: 1 << 40, tag: TagLong, size: 14},
	}
	for _, tt := range tests {
		h := NewHeader(tt.length)
		assert.Equal(t, tt.tag, h.Tag, "length %d", tt.length)

		b, err := h.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, b, tt.size)
		assert.Equal(t, tt.size, h.Size())

		got, err := ReadHeader(bytes.NewReader(b))
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
}

// patternReader yields n bytes of a repeating pattern.
type patternReader struct {
	n   int64
	off int64
}

func (r *patternReader) Read(p []byte) (int, error) {
	if r.off >= r.n {
		return 0, io.EOF
	}
	if rem := r.n - r.off; int64(len(p)) > rem {
		p = p[:rem]
	}
	for i := range p {
		p[i] = byte((r.off + int64(i)) % 251)
	}
	r.off += int64(len(p))
	return len(p), nil
}

// checkWriter verifies the pattern written by patternReader.
type checkWriter struct {
	n   int64
	bad bool
}

func (w *checkWriter) Write(p []byte) (int, error) {
	for i, b := range p {
		if b != byte((w.n+int64(i))%251) {
			w.bad = true
		}
	}
	w.n += int64(len(p))
	return len(p), nil
}

func TestRoundTripLongTagBoundary(t *testing.T) {
	if testing.Short() {
		t.Skip("streams 2 GiB")
	}
	t.Parallel()

	for _, length := range []int64{math.MaxInt32, 1 << 31} {
		pr, pw := io.Pipe()
		encErr := make(chan error, 1)
		go func() {
			_, err := Encode(context.Background(), pw, &patternReader{n: length}, length, WithLevel(flate.BestSpeed))
			pw.CloseWithError(err)
			encErr <- err
		}()

		br := bufio.NewReader(pr)
		head, err := br.Peek(4)
		require.NoError(t, err)
		want := TagStandard
		if length > math.MaxInt32 {
			want = TagLong
		}
		assert.Equal(t, want, string(head), "length %d", length)

		var cw checkWriter
		n, err := Decode(context.Background(), &cw, br)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, br) //nolint:errcheck // drain so the encoder can finish
		require.NoError(t, <-encErr)
		assert.Equal(t, length, n)
		assert.Equal(t, length, cw.n)
		assert.False(t, cw.bad, "payload differs")
	}
}

func TestStandardTagRejectsLongLength(t *testing.T) {
	t.Parallel()

	_, err := Header{Tag: TagStandard, Length: math.MaxInt32 + 1}.MarshalBinary()
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestDecodeLongTag(t *testing.T) {
	t.Parallel()

	data := []byte("abc")
	packed := container(t, Header{Tag: TagLong, Length: 3}, rawDeflate(t, data))
	got, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecodeTagCaseInsensitive(t *testing.T) {
	t.Parallel()

	packed, err := Compress([]byte("hello"))
	require.NoError(t, err)
	copy(packed, "L33T")

	got, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestIsCompressedExactTag(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCompressed([]byte("l33t....")))
	assert.True(t, IsCompressed([]byte("l66t....")))
	assert.False(t, IsCompressed([]byte("L33T raw text")))
	assert.False(t, IsCompressed([]byte("L66t")))
	assert.False(t, IsCompressed([]byte("l33")))
}

func TestDecodeUnknownTag(t *testing.T) {
	t.Parallel()

	_, err := Decompress([]byte("zip!\x05\x00\x00\x00\x78\x9c"))
	require.ErrorIs(t, err, ErrInvalidFormat)
	assert.False(t, IsCompressed([]byte("zip!")))
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	t.Run("short header", func(t *testing.T) {
		t.Parallel()
		_, err := Decompress([]byte("l33t\x05"))
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("cut deflate stream", func(t *testing.T) {
		t.Parallel()
		packed, err := Compress(randomBytes(50_000, 3))
		require.NoError(t, err)
		_, err = Decompress(packed[:len(packed)/2])
		require.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("declared length exceeds stream", func(t *testing.T) {
		t.Parallel()
		packed := container(t, Header{Tag: TagStandard, Length: 100}, rawDeflate(t, []byte("0123456789")))
		_, err := Decompress(packed)
		require.ErrorIs(t, err, ErrTruncated)
	})
}

func TestDecodeSurplusTruncated(t *testing.T) {
	t.Parallel()

	body := rawDeflate(t, []byte("0123456789"))
	packed := container(t, Header{Tag: TagStandard, Length: 4}, body)
	packed = append(packed, "trailing garbage"...)

	got, err := Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(got))
}

func TestDecompressMaxSize(t *testing.T) {
	t.Parallel()

	packed, err := Compress(make([]byte, 1024))
	require.NoError(t, err)

	_, err = Decompress(packed, WithMaxSize(512))
	require.ErrorIs(t, err, ErrTooLarge)

	got, err := Decompress(packed, WithMaxSize(0))
	require.NoError(t, err)
	assert.Len(t, got, 1024)
}

func TestEncodeClipsSource(t *testing.T) {
	t.Parallel()

	src := bytes.NewReader([]byte("0123456789"))
	var out bytes.Buffer
	n, err := Encode(context.Background(), &out, src, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(out.Len()), n)
	assert.Equal(t, 6, src.Len(), "source read past the declared length")

	got, err := Decompress(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "0123", string(got))
}

func TestEncodeShortSource(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	_, err := Encode(context.Background(), &out, bytes.NewReader([]byte("abc")), 10)
	require.ErrorIs(t, err, ErrTruncated)
}

func TestProgress(t *testing.T) {
	t.Parallel()

	var last, total int64
	data := randomBytes(300_000, 9)
	_, err := Compress(data, WithProgress(func(done, tot int64) {
		last, total = done, tot
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), last)
	assert.Equal(t, int64(len(data)), total)
}

func TestLevels(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("abcdefgh"), 1000)
	for _, level := range []int{flate.HuffmanOnly, flate.NoCompression, flate.BestSpeed, flate.BestCompression, 42} {
		packed, err := Compress(data, WithLevel(level))
		require.NoError(t, err)
		got, err := Decompress(packed)
		require.NoError(t, err)
		assert.Equal(t, data, got, "level %d", level)
	}
}

func TestCompressFileRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "scenario.age4scn")
	packed := filepath.Join(dir, "scenario.l33t")
	out := filepath.Join(dir, "scenario.out")
	data := randomBytes(120_000, 11)
	require.NoError(t, os.WriteFile(in, data, 0o600))

	require.NoError(t, CompressFile(context.Background(), in, packed))
	ok, err := SniffFile(packed)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, DecompressFile(context.Background(), packed, out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err = SniffFile(out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileOpsCleanupOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in.bin")
	require.NoError(t, os.WriteFile(in, randomBytes(1000, 5), 0o600))

	t.Run("cancelled compress", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "cancelled.l33t")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := CompressFile(ctx, in, out)
		require.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, out)
	})

	t.Run("decompress of raw file", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(dir, "raw.out")
		err := DecompressFile(context.Background(), in, out)
		require.Error(t, err)
		assert.NoFileExists(t, out)
	})
}

func TestSniffShortFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tiny")
	require.NoError(t, os.WriteFile(path, []byte("l3"), 0o600))
	ok, err := SniffFile(path)
	require.NoError(t, err)
	assert.False(t, ok)
}
