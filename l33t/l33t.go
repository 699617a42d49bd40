// Package l33t reads and writes the l33t compressed container: a four byte
// tag, the uncompressed length, a two byte zlib marker and a raw deflate
// stream.
//
// Lengths that fit a signed 32-bit integer use the "l33t" tag with a 32-bit
// length field. Longer payloads use "l66t" with a 64-bit field.
package l33t

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/meigma/gamefiles/internal/binio"
)

// Container tags.
const (
	TagStandard = "l33t"
	TagLong     = "l66t"
)

// Marker is the zlib header written between the length field and the
// deflate stream. It is skipped, not validated, on read.
var Marker = [2]byte{0x78, 0x9C}

var (
	// ErrInvalidFormat is returned when the container tag is not recognized.
	ErrInvalidFormat = errors.New("l33t: invalid container")

	// ErrCorrupt is returned when the deflate stream cannot be decoded.
	ErrCorrupt = errors.New("l33t: corrupt deflate stream")

	// ErrTooLarge is returned when a declared length exceeds the configured limit.
	ErrTooLarge = errors.New("l33t: declared length exceeds limit")

	// ErrTruncated is returned when the input ends before the declared length.
	ErrTruncated = binio.ErrTruncated
)

// Header is the fixed prefix of a container.
type Header struct {
	Tag    string
	Length int64
}

// NewHeader returns the header for a payload of length bytes.
func NewHeader(length int64) Header {
	if length > math.MaxInt32 {
		return Header{Tag: TagLong, Length: length}
	}
	return Header{Tag: TagStandard, Length: length}
}

// Size returns the encoded size of the header including the marker.
func (h Header) Size() int {
	if strings.EqualFold(h.Tag, TagLong) {
		return 4 + 8 + len(Marker)
	}
	return 4 + 4 + len(Marker)
}

// MarshalBinary encodes the header and marker.
func (h Header) MarshalBinary() ([]byte, error) {
	if h.Length < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrInvalidFormat, h.Length)
	}
	w := binio.NewWriter(h.Size())
	switch {
	case strings.EqualFold(h.Tag, TagLong):
		w.Tag(TagLong)
		w.Int64(h.Length)
	case strings.EqualFold(h.Tag, TagStandard):
		if h.Length > math.MaxInt32 {
			return nil, fmt.Errorf("%w: length %d needs the %s tag", ErrInvalidFormat, h.Length, TagLong)
		}
		w.Tag(TagStandard)
		w.Int32(int32(h.Length)) //nolint:gosec // range checked above
	default:
		return nil, fmt.Errorf("%w: tag %q", ErrInvalidFormat, h.Tag)
	}
	_, _ = w.Write(Marker[:]) //nolint:errcheck // in-memory writer
	return w.Bytes(), nil
}

// ReadHeader reads a header and skips the marker. The tag is matched
// case-insensitively.
func ReadHeader(r io.Reader) (Header, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return Header{}, headerErr(err)
	}
	var h Header
	switch {
	case strings.EqualFold(string(tag[:]), TagStandard):
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Header{}, headerErr(err)
		}
		h = Header{Tag: TagStandard, Length: int64(int32(binary.LittleEndian.Uint32(b[:])))} //nolint:gosec // signed field
	case strings.EqualFold(string(tag[:]), TagLong):
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Header{}, headerErr(err)
		}
		h = Header{Tag: TagLong, Length: int64(binary.LittleEndian.Uint64(b[:]))} //nolint:gosec // signed field
	default:
		return Header{}, fmt.Errorf("%w: tag %q", ErrInvalidFormat, tag[:])
	}
	if h.Length < 0 {
		return Header{}, fmt.Errorf("%w: negative length %d", ErrInvalidFormat, h.Length)
	}
	var m [2]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return Header{}, headerErr(err)
	}
	return h, nil
}

func headerErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: header", ErrTruncated)
	}
	return err
}

// IsCompressed reports whether data starts with a container tag. Unlike
// ReadHeader, the sniff is case-sensitive so raw files that happen to start
// with "L33T" are not mistaken for containers.
func IsCompressed(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	tag := string(data[:4])
	return tag == TagStandard || tag == TagLong
}

// SniffFile reports whether the file at path starts with a container tag.
// Files shorter than a tag are not compressed.
func SniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var tag [4]byte
	n, err := io.ReadFull(f, tag[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return IsCompressed(tag[:n]), nil
}
