package gamefiles

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/atomicfile"
	"github.com/meigma/gamefiles/internal/platform"
	"github.com/meigma/gamefiles/internal/stream"
	"github.com/meigma/gamefiles/internal/walk"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// PackStats summarizes Pack.
type PackStats struct {
	// Archive is the header and table as written.
	Archive *bar.Archive
	Files   int
	// Converted counts markup files stored as XMB.
	Converted int
	// Compressed counts files wrapped in a l33t container while packing.
	Compressed int
	// Bytes is the total content size.
	Bytes uint64
}

// Pack builds an archive at outputPath from every regular file under
// inputDir, stored with rootPath as the archive root.
//
// Files of a directory are stored before the contents of its
// subdirectories, each in name order. Symlinks are skipped. Keep-compressed
// files are wrapped in a l33t container unless they already are one, and
// markup files that parse as XML are stored as XMB under "<name>.xmb";
// markup that does not parse is stored as-is. The input directory is never
// modified, and outputPath is replaced atomically.
func Pack(ctx context.Context, inputDir, outputPath, rootPath string, opts ...PackOption) (*PackStats, error) {
	cfg := newPackConfig(opts)
	p := &packer{cfg: cfg}
	start := time.Now()

	var writeOpts []bar.WriteOption
	if cfg.templatePath != "" {
		h, err := readTemplateHeader(cfg.templatePath)
		if err != nil {
			return nil, fmt.Errorf("template: %w", err)
		}
		writeOpts = append(writeOpts, bar.WithHeaderTemplate(h))
	}

	root, err := os.OpenRoot(inputDir)
	if err != nil {
		return nil, err
	}
	defer root.Close()
	p.root = root

	p.emit(ProgressEvent{Stage: StageEnumerating})
	files, err := walk.Files(ctx, root)
	if err != nil {
		return nil, err
	}
	p.log().Info("pack start", "input", inputDir, "files", len(files), "root", rootPath)

	staging, err := os.MkdirTemp("", "gamefiles-pack-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(staging) //nolint:errcheck // best-effort cleanup
	p.staging = staging

	stats := &PackStats{Files: len(files)}
	sources := make([]bar.Source, 0, len(files))
	// Stored names must be unique ignoring case and separator, since
	// lookup and extraction treat them that way.
	seen := make(map[string]string, len(files))
	var errs []error
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, err := p.stage(ctx, f, stats)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		key := nameKey(src.Name)
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s: %w: stored as %q, which %s already uses",
				f.Path, ErrDuplicateEntry, src.Name, prev))
			continue
		}
		seen[key] = f.Path
		sources = append(sources, src)
		stats.Bytes += uint64(src.Size) //nolint:gosec // sizes are never negative
		p.emit(ProgressEvent{Stage: StageStaging, Path: f.Path, FilesDone: i + 1, FilesTotal: len(files)})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	writeOpts = append(writeOpts, bar.WithWriteProgress(func(done, total int64) {
		p.emit(ProgressEvent{
			Stage:      StageWriting,
			BytesDone:  uint64(done),  //nolint:gosec // never negative
			BytesTotal: uint64(total), //nolint:gosec // never negative
			FilesTotal: len(sources),
		})
	}))
	err = atomicfile.Write(outputPath, func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, stream.BufferSize)
		a, err := bar.Write(ctx, bw, filepath.Base(outputPath), rootPath, sources, writeOpts...)
		if err != nil {
			return err
		}
		stats.Archive = a
		return bw.Flush()
	})
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", outputPath, err)
	}

	p.log().Info("pack done", "output", outputPath, "files", stats.Files,
		"converted", stats.Converted, "compressed", stats.Compressed, "elapsed", time.Since(start))
	return stats, nil
}

// nameKey folds a stored name for duplicate detection.
func nameKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, `\`, "/"))
}

func readTemplateHeader(path string) (bar.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return bar.Header{}, err
	}
	defer f.Close()
	return bar.ReadHeader(f)
}

type packer struct {
	cfg     packConfig
	root    *os.Root
	staging string
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.cfg.logger
}

func (p *packer) emit(ev ProgressEvent) {
	if p.cfg.progress != nil {
		p.cfg.progress(ev)
	}
}

// stage returns the archive source for one input file, writing a
// compressed or converted copy to the staging directory when needed.
func (p *packer) stage(ctx context.Context, f walk.File, stats *PackStats) (bar.Source, error) {
	fsPath := filepath.FromSlash(f.Path)
	name := bar.StoredName(f.Path, p.cfg.separator)
	mod := bar.TimeOf(bar.SentinelTime)
	if p.cfg.fileTimes {
		mod = bar.TimeOf(f.Info.ModTime())
	}
	plain := bar.Source{
		Name:    name,
		Size:    f.Info.Size(),
		ModTime: mod,
		Open: func() (io.ReadCloser, error) {
			in, err := platform.OpenFileNoFollow(p.root, fsPath)
			if err != nil {
				return nil, err
			}
			return in, nil
		},
	}

	switch {
	case hasExt(f.Path, p.cfg.keep):
		compressed, err := p.sniff(fsPath)
		if err != nil || compressed {
			return plain, err
		}
		staged, size, err := p.writeStaged(func(w io.Writer) error {
			in, err := platform.OpenFileNoFollow(p.root, fsPath)
			if err != nil {
				return err
			}
			defer in.Close()
			_, err = l33t.Encode(ctx, w, bufio.NewReaderSize(in, stream.BufferSize), f.Info.Size())
			return err
		})
		if err != nil {
			return bar.Source{}, err
		}
		stats.Compressed++
		p.log().Debug("compressed", "file", f.Path, "size", f.Info.Size(), "stored", size)
		return stagedSource(name, staged, size, mod), nil

	case p.cfg.convert && hasExt(f.Path, p.cfg.markup):
		doc, err := p.parseMarkup(fsPath)
		if err != nil {
			p.log().Debug("markup stored as-is", "file", f.Path, "error", err)
			return plain, nil
		}
		staged, size, err := p.writeStaged(doc.Encode)
		if err != nil {
			return bar.Source{}, err
		}
		stats.Converted++
		return stagedSource(name+xmbExt, staged, size, mod), nil
	}
	return plain, nil
}

func (p *packer) sniff(fsPath string) (bool, error) {
	in, err := platform.OpenFileNoFollow(p.root, fsPath)
	if err != nil {
		return false, err
	}
	defer in.Close()
	var tag [4]byte
	n, err := io.ReadFull(in, tag[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return l33t.IsCompressed(tag[:n]), nil
}

func (p *packer) parseMarkup(fsPath string) (*xmb.Document, error) {
	in, err := platform.OpenFileNoFollow(p.root, fsPath)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return xmb.ParseXML(bufio.NewReaderSize(in, stream.BufferSize))
}

// writeStaged fills a new file in the staging directory and returns its
// path and size.
func (p *packer) writeStaged(fill func(w io.Writer) error) (string, int64, error) {
	tmp, err := os.CreateTemp(p.staging, "entry-*")
	if err != nil {
		return "", 0, err
	}
	bw := bufio.NewWriterSize(tmp, stream.BufferSize)
	err = fill(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return "", 0, err
	}
	info, err := os.Stat(tmp.Name())
	if err != nil {
		return "", 0, err
	}
	return tmp.Name(), info.Size(), nil
}

func stagedSource(name, path string, size int64, mod bar.LastWriteTime) bar.Source {
	return bar.Source{
		Name:    name,
		Size:    size,
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
