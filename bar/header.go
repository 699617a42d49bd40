// Package bar reads and writes BAR archives.
//
// An archive is a fixed 292-byte header, the raw contents of every file
// concatenated in table order, and a trailing table holding the root path
// and one record per file.
package bar

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/meigma/gamefiles/internal/binio"
)

// Header layout constants.
const (
	Magic        = "ESPN"
	HeaderSize   = 292
	ReservedSize = 264

	DefaultVersion uint32 = 2
	DefaultFormat  uint32 = 0x44332211
)

var (
	// ErrInvalidArchive is returned when the header or table is malformed.
	ErrInvalidArchive = errors.New("bar: invalid archive")

	// ErrNotFound is returned when an archive has no entry with the requested name.
	ErrNotFound = fmt.Errorf("bar: entry %w", fs.ErrNotExist)

	// ErrUnsafeName is returned when an entry or root name would escape the
	// extraction directory.
	ErrUnsafeName = errors.New("bar: unsafe entry name")

	// ErrTooLarge is returned when content does not fit the 32-bit offsets.
	ErrTooLarge = errors.New("bar: archive exceeds 4 GiB")

	// ErrTruncated is returned when the source ends inside a header, table or entry.
	ErrTruncated = binio.ErrTruncated
)

// Header is the fixed archive header. Version, Format, Reserved and
// Checksum are carried through unchanged on read; Checksum is never
// verified.
type Header struct {
	Version      uint32
	Format       uint32
	Reserved     [ReservedSize]byte
	Checksum     uint32
	FileCount    uint32
	TableOffset  uint32
	FileNameHash uint32
}

// NewHeader returns a header with default format words for an archive
// named fileName.
func NewHeader(fileName string, fileCount, tableOffset uint32) Header {
	return Header{
		Version:      DefaultVersion,
		Format:       DefaultFormat,
		FileCount:    fileCount,
		TableOffset:  tableOffset,
		FileNameHash: FileNameHash(fileName),
	}
}

// MarshalBinary encodes the header.
func (h Header) MarshalBinary() ([]byte, error) {
	w := binio.NewWriter(HeaderSize)
	w.Tag(Magic)
	w.Uint32(h.Version)
	w.Uint32(h.Format)
	_, _ = w.Write(h.Reserved[:]) //nolint:errcheck // in-memory writer
	w.Uint32(h.Checksum)
	w.Uint32(h.FileCount)
	w.Uint32(h.TableOffset)
	w.Uint32(h.FileNameHash)
	return w.Bytes(), w.Err()
}

// UnmarshalBinary decodes a header from the first HeaderSize bytes of data.
func (h *Header) UnmarshalBinary(data []byte) error {
	r := binio.NewReader(data)
	magic := r.Tag(len(Magic))
	if err := r.Err(); err != nil {
		return err
	}
	if magic != Magic {
		return fmt.Errorf("%w: magic %q, want %q", ErrInvalidArchive, magic, Magic)
	}
	var out Header
	out.Version = r.Uint32()
	out.Format = r.Uint32()
	copy(out.Reserved[:], r.Bytes(ReservedSize))
	out.Checksum = r.Uint32()
	out.FileCount = r.Uint32()
	out.TableOffset = r.Uint32()
	out.FileNameHash = r.Uint32()
	if err := r.Err(); err != nil {
		return err
	}
	*h = out
	return nil
}

// ReadHeader reads the header at the start of src.
func ReadHeader(src io.ReaderAt) (Header, error) {
	var buf [HeaderSize]byte
	n, err := src.ReadAt(buf[:], 0)
	if n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: header is %d bytes, want %d", ErrTruncated, n, HeaderSize)
		}
		if n >= len(Magic) && string(buf[:len(Magic)]) != Magic {
			err = fmt.Errorf("%w: magic %q, want %q", ErrInvalidArchive, buf[:len(Magic)], Magic)
		}
		return Header{}, err
	}
	var h Header
	if err := h.UnmarshalBinary(buf[:]); err != nil {
		return Header{}, err
	}
	return h, nil
}
