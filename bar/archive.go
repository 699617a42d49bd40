package bar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/meigma/gamefiles/internal/binio"
	"github.com/meigma/gamefiles/internal/stream"
)

// MaxTableSize bounds the table Read loads into memory.
const MaxTableSize = 256 << 20

// Archive is a decoded header and table.
type Archive struct {
	Header   Header
	RootPath string
	Entries  []Entry
}

// Read decodes the header and table of the size-byte archive in src.
// Entry contents are not read.
func Read(src io.ReaderAt, size int64) (*Archive, error) {
	h, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}
	if h.TableOffset < HeaderSize || int64(h.TableOffset) > size {
		return nil, fmt.Errorf("%w: table offset %d outside [%d,%d]", ErrInvalidArchive, h.TableOffset, HeaderSize, size)
	}
	tableSize := size - int64(h.TableOffset)
	if tableSize > MaxTableSize {
		return nil, fmt.Errorf("%w: table of %d bytes", ErrInvalidArchive, tableSize)
	}
	table := make([]byte, tableSize)
	if n, err := src.ReadAt(table, int64(h.TableOffset)); n < len(table) {
		if err == nil || errors.Is(err, io.EOF) {
			err = ErrTruncated
		}
		return nil, fmt.Errorf("bar: read table: %w", err)
	}

	a := &Archive{Header: h}
	if err := a.decodeTable(table); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) decodeTable(table []byte) error {
	r := binio.NewReader(table)
	a.RootPath = r.String()
	count := r.Uint32()
	if err := r.Err(); err != nil {
		return fmt.Errorf("bar: table: %w", err)
	}
	if uint64(count)*minEntrySize > uint64(r.Len()) { //nolint:gosec // Len is never negative
		return fmt.Errorf("%w: table lists %d entries in %d bytes", ErrTruncated, count, r.Len())
	}
	a.Entries = make([]Entry, 0, count)
	for range count {
		a.Entries = append(a.Entries, readEntry(r))
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("bar: table: %w", err)
	}
	return nil
}

// MarshalTable encodes the root path and entry records.
func (a *Archive) MarshalTable() ([]byte, error) {
	w := binio.NewWriter(8 + len(a.Entries)*(minEntrySize+64))
	w.String(a.RootPath)
	count, err := countOf(a.Entries)
	if err != nil {
		return nil, err
	}
	w.Uint32(count)
	for i := range a.Entries {
		a.Entries[i].write(w)
	}
	return w.Bytes(), w.Err()
}

// Lookup returns the entry named name. Names match case-insensitively and
// '\' and '/' are interchangeable.
func (a *Archive) Lookup(name string) (*Entry, error) {
	for i := range a.Entries {
		if sameName(a.Entries[i].Name, name) {
			return &a.Entries[i], nil
		}
	}
	return nil, &fs.PathError{Op: "lookup", Path: name, Err: ErrNotFound}
}

// CopyEntry writes exactly e.Size bytes of the entry's content from src to
// dst. Cancellation is checked once per buffer; a source that ends early
// yields an error wrapping ErrTruncated.
func CopyEntry(ctx context.Context, dst io.Writer, src io.ReaderAt, e *Entry, buf []byte) (int64, error) {
	sr := io.NewSectionReader(src, int64(e.Offset), int64(e.Size))
	n, err := stream.CopyExact(ctx, dst, sr, int64(e.Size), buf, nil)
	if err != nil {
		return n, fmt.Errorf("bar: copy %s: %w", e.Name, err)
	}
	return n, nil
}

// File is an archive opened from disk.
type File struct {
	*Archive
	f    *os.File
	size int64
}

// OpenFile opens the archive at path and reads its table.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	a, err := Read(f, info.Size())
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Archive: a, f: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt over the whole archive. It is safe for
// concurrent use.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

// Size returns the archive size in bytes.
func (f *File) Size() int64 { return f.size }

// Section returns a reader over the content of e.
func (f *File) Section(e *Entry) *io.SectionReader {
	return io.NewSectionReader(f.f, int64(e.Offset), int64(e.Size))
}

// ReadFile returns the content of the entry named name.
func (f *File) ReadFile(name string) ([]byte, error) {
	e, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, e.Size)
	if _, err := io.ReadFull(f.Section(e), buf); err != nil {
		return nil, fmt.Errorf("bar: read %s: %w", e.Name, ErrTruncated)
	}
	return buf, nil
}

// Close closes the underlying file.
func (f *File) Close() error {
	return f.f.Close()
}

func countOf(entries []Entry) (uint32, error) {
	if uint64(len(entries)) > uint64(^uint32(0)) {
		return 0, ErrTooLarge
	}
	return uint32(len(entries)), nil //nolint:gosec // checked above
}
