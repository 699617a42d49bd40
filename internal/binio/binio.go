// Package binio reads and writes the little-endian primitives shared by the
// archive and document formats.
//
// Reader and Writer keep the first error they hit; callers check Err once
// after a run of reads or writes instead of after every field.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// ErrTruncated is returned when the input ends before a field is complete.
var ErrTruncated = errors.New("binio: unexpected end of data")

// utf16le has no BOM handling: a leading U+FEFF is kept as a character.
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Reader decodes fields from a byte slice.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Fail records err unless an earlier error is already recorded.
func (r *Reader) Fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Len() {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, r.Len())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Tag reads n bytes and returns them as a string.
func (r *Reader) Tag(n int) string {
	return string(r.Bytes(n))
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.Bytes(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Int16 reads a little-endian int16.
func (r *Reader) Int16() int16 {
	return int16(r.Uint16()) //nolint:gosec // two's complement reinterpretation
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.Bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() int32 {
	return int32(r.Uint32()) //nolint:gosec // two's complement reinterpretation
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64() uint64 {
	b := r.Bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// Int64 reads a little-endian int64.
func (r *Reader) Int64() int64 {
	return int64(r.Uint64()) //nolint:gosec // two's complement reinterpretation
}

// String reads a uint32 count of UTF-16 code units followed by the
// UTF-16LE units themselves.
func (r *Reader) String() string {
	units := r.Uint32()
	if r.err != nil {
		return ""
	}
	if uint64(units)*2 > uint64(r.Len()) { //nolint:gosec // Len is never negative
		r.err = fmt.Errorf("%w: string of %d units at offset %d", ErrTruncated, units, r.off)
		return ""
	}
	s, err := DecodeUTF16(r.Bytes(int(units) * 2))
	if err != nil {
		r.Fail(err)
		return ""
	}
	return s
}

// Writer encodes fields into a growing byte slice.
type Writer struct {
	buf []byte
	err error
}

// NewWriter returns a Writer with capacity preallocated for sizeHint bytes.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Tag appends s as raw bytes.
func (w *Writer) Tag(s string) {
	w.buf = append(w.buf, s...)
}

// Uint16 appends a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// Int16 appends a little-endian int16.
func (w *Writer) Int16(v int16) {
	w.Uint16(uint16(v)) //nolint:gosec // two's complement reinterpretation
}

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Int32 appends a little-endian int32.
func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v)) //nolint:gosec // two's complement reinterpretation
}

// Uint64 appends a little-endian uint64.
func (w *Writer) Uint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// Int64 appends a little-endian int64.
func (w *Writer) Int64(v int64) {
	w.Uint64(uint64(v)) //nolint:gosec // two's complement reinterpretation
}

// String appends the UTF-16 code unit count of s followed by its UTF-16LE
// encoding.
func (w *Writer) String(s string) {
	b, err := EncodeUTF16(s)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return
	}
	w.Uint32(uint32(len(b) / 2)) //nolint:gosec // bounded by input length
	w.buf = append(w.buf, b...)
}

// Reserve32 appends a zero uint32 and returns its position for Patch32.
func (w *Writer) Reserve32() int {
	pos := len(w.buf)
	w.Uint32(0)
	return pos
}

// Patch32 overwrites the uint32 at pos.
func (w *Writer) Patch32(pos int, v uint32) {
	binary.LittleEndian.PutUint32(w.buf[pos:pos+4], v)
}

// DecodeUTF16 converts UTF-16LE bytes to a string.
func DecodeUTF16(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("binio: decode utf-16: %w", err)
	}
	return string(out), nil
}

// EncodeUTF16 converts s to UTF-16LE bytes without a byte order mark.
func EncodeUTF16(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("binio: encode utf-16: %w", err)
	}
	return out, nil
}

// UTF16Len returns the number of UTF-16 code units needed to encode s.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
