package bar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"github.com/meigma/gamefiles/internal/sizing"
	"github.com/meigma/gamefiles/internal/stream"
)

// Source supplies the content of one entry to Write.
type Source struct {
	// Name is the stored entry name.
	Name    string
	Size    int64
	ModTime LastWriteTime
	Open    func() (io.ReadCloser, error)
}

// BytesSource returns a Source serving data from memory.
func BytesSource(name string, data []byte, modTime LastWriteTime) Source {
	return Source{
		Name:    name,
		Size:    int64(len(data)),
		ModTime: modTime,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileSource returns a Source for the file at path stored as name.
// The entry time is the file's modification time when useModTime is set
// and SentinelTime otherwise.
func FileSource(path, name string, info fs.FileInfo, useModTime bool) Source {
	mod := TimeOf(SentinelTime)
	if useModTime {
		mod = TimeOf(info.ModTime())
	}
	return Source{
		Name:    name,
		Size:    info.Size(),
		ModTime: mod,
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

// SourceFromFile is FileSource with the name taken from the position of
// path relative to root, stored with '\' separators.
func SourceFromFile(root, path string, info fs.FileInfo, useModTime bool) (Source, error) {
	e, err := EntryFromFile(root, path, info, useModTime)
	if err != nil {
		return Source{}, err
	}
	return FileSource(path, e.Name, info, useModTime), nil
}

// EntryFromFile returns the table record for the file at path, named
// relative to root. Offset is left zero; Write assigns it.
func EntryFromFile(root, path string, info fs.FileInfo, useModTime bool) (Entry, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return Entry{}, err
	}
	name, err := CleanName(filepath.ToSlash(rel))
	if err != nil {
		return Entry{}, err
	}
	size, err := sizing.ToUint32(info.Size(), ErrTooLarge)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", path, err)
	}
	mod := TimeOf(SentinelTime)
	if useModTime {
		mod = TimeOf(info.ModTime())
	}
	return Entry{
		Name:    StoredName(name, '\\'),
		Size:    size,
		Size2:   size,
		ModTime: mod,
	}, nil
}

// WriteProgressFunc receives the number of content bytes written and the
// total content size.
type WriteProgressFunc func(done, total int64)

// WriteOption configures Write.
type WriteOption func(*writeConfig)

type writeConfig struct {
	template *Header
	progress WriteProgressFunc
}

// WithHeaderTemplate copies Version, Format, Reserved and Checksum from h
// instead of using the defaults. Use it when rewriting an existing archive.
func WithHeaderTemplate(h Header) WriteOption {
	return func(c *writeConfig) {
		c.template = &h
	}
}

// WithWriteProgress sets a callback for progress updates.
func WithWriteProgress(fn WriteProgressFunc) WriteOption {
	return func(c *writeConfig) {
		c.progress = fn
	}
}

// Write encodes an archive named fileName to w: the header, the content of
// every source in order, then the table. fileName feeds the header hash
// and should be the base name of the output file.
//
// Each source must yield at least Size bytes; only Size bytes are copied.
// It returns the archive as written.
func Write(ctx context.Context, w io.Writer, fileName, rootPath string, sources []Source, opts ...WriteOption) (*Archive, error) {
	var cfg writeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var total uint64
	for _, src := range sources {
		if src.Size < 0 {
			return nil, fmt.Errorf("bar: %s: negative size %d", src.Name, src.Size)
		}
		var ok bool
		total, ok = sizing.AddUint64(total, uint64(src.Size))
		if !ok {
			return nil, ErrTooLarge
		}
	}
	if total > math.MaxUint32-HeaderSize {
		return nil, fmt.Errorf("%w: %d content bytes", ErrTooLarge, total)
	}
	count, err := sizing.ToUint32(int64(len(sources)), ErrTooLarge)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		Header:   NewHeader(fileName, count, HeaderSize+uint32(total)), //nolint:gosec // checked above
		RootPath: rootPath,
		Entries:  make([]Entry, 0, len(sources)),
	}
	if t := cfg.template; t != nil {
		a.Header.Version = t.Version
		a.Header.Format = t.Format
		a.Header.Reserved = t.Reserved
		a.Header.Checksum = t.Checksum
	}

	hdr, err := a.Header.MarshalBinary()
	if err != nil {
		return nil, err
	}
	cw := &stream.CountingWriter{W: w}
	if _, err := cw.Write(hdr); err != nil {
		return nil, err
	}

	buf := stream.GetBuffer()
	defer stream.PutBuffer(buf)
	var done int64
	for _, src := range sources {
		e := Entry{
			Name:    src.Name,
			Offset:  uint32(cw.N), //nolint:gosec // bounded by the total checked above
			Size:    uint32(src.Size), //nolint:gosec // bounded by the total checked above
			ModTime: src.ModTime,
		}
		e.Size2 = e.Size
		if err := writeContent(ctx, cw, src, *buf, func(n int64) {
			if cfg.progress != nil {
				cfg.progress(done+n, int64(total)) //nolint:gosec // total fits uint32
			}
		}); err != nil {
			return nil, err
		}
		done += src.Size
		a.Entries = append(a.Entries, e)
	}
	if cw.N != uint64(a.Header.TableOffset) {
		return nil, fmt.Errorf("bar: content ended at %d, table offset is %d", cw.N, a.Header.TableOffset)
	}

	table, err := a.MarshalTable()
	if err != nil {
		return nil, err
	}
	if _, err := cw.Write(table); err != nil {
		return nil, err
	}
	return a, nil
}

func writeContent(ctx context.Context, w io.Writer, src Source, buf []byte, progress stream.ProgressFunc) error {
	rc, err := src.Open()
	if err != nil {
		return fmt.Errorf("bar: open %s: %w", src.Name, err)
	}
	defer rc.Close()
	if _, err := stream.CopyExact(ctx, w, rc, src.Size, buf, progress); err != nil {
		return fmt.Errorf("bar: write %s: %w", src.Name, err)
	}
	return nil
}
