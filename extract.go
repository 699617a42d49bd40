package gamefiles

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/batch"
	"github.com/meigma/gamefiles/internal/sizing"
	"github.com/meigma/gamefiles/internal/stream"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// EntryResult describes the outcome for one archive entry.
type EntryResult struct {
	// Name is the entry name as stored in the archive.
	Name string
	// Path is where the entry was installed, slash-separated and relative
	// to the output directory. It includes the archive root path.
	Path       string
	State      EntryState
	Conversion Conversion
	// Decompressed is set when a l33t container was unwrapped.
	Decompressed bool
	// Compressed is set when a raw keep-compressed entry was wrapped.
	Compressed bool
	// Size is the installed file size.
	Size int64
}

// ExtractStats summarizes ExtractAll. Entries is in table order.
type ExtractStats struct {
	Entries      []EntryResult
	Installed    int
	Failed       int
	Converted    int
	Fallbacks    int
	Decompressed int
	Compressed   int
	// Bytes is the total stored size of the installed entries.
	Bytes uint64
}

// ExtractAll extracts every entry of the archive at archivePath into
// outputDir/<root path>.
//
// Entries are extracted concurrently and independently. A failed entry
// does not stop the others: the returned error joins one *EntryError per
// failed entry, and the stats are returned alongside it.
func ExtractAll(ctx context.Context, archivePath, outputDir string, opts ...ExtractOption) (*ExtractStats, error) {
	cfg := newExtractConfig(opts)
	f, err := bar.OpenFile(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := newExtractor(cfg, f, f.Archive, outputDir)
	if err != nil {
		return nil, err
	}

	// Visit entries in content order so concurrent reads stay close together.
	n := len(f.Entries)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(f.Entries[a].Offset, f.Entries[b].Offset)
	})

	start := time.Now()
	x.log().Info("extract start", "archive", archivePath, "entries", n, "root", f.RootPath,
		"workers", x.proc.Workers(n))

	results := make([]EntryResult, n)
	err = x.proc.Process(ctx, n, func(ctx context.Context, i int) error {
		j := order[i]
		res, err := x.extract(ctx, &f.Entries[j])
		results[j] = res
		return err
	})

	stats := summarize(results)
	x.log().Info("extract done", "archive", archivePath, "installed", stats.Installed,
		"failed", stats.Failed, "converted", stats.Converted, "elapsed", time.Since(start))
	return stats, err
}

// ExtractFile extracts the single entry named name. Names match
// case-insensitively with either separator. A missing entry yields an
// error matching ErrEntryNotFound and nothing is written.
func ExtractFile(ctx context.Context, archivePath, name, outputDir string, opts ...ExtractOption) (*EntryResult, error) {
	cfg := newExtractConfig(opts)
	f, err := bar.OpenFile(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	e, err := f.Lookup(name)
	if err != nil {
		return nil, err
	}
	x, err := newExtractor(cfg, f, f.Archive, outputDir)
	if err != nil {
		return nil, err
	}
	res, err := x.extract(ctx, e)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func summarize(results []EntryResult) *ExtractStats {
	stats := &ExtractStats{Entries: results}
	for i := range results {
		r := &results[i]
		if r.State != StateInstalled {
			stats.Failed++
			continue
		}
		stats.Installed++
		stats.Bytes += uint64(r.Size) //nolint:gosec // sizes are never negative
		switch r.Conversion {
		case ConversionApplied:
			stats.Converted++
		case ConversionFallback:
			stats.Fallbacks++
		}
		if r.Decompressed {
			stats.Decompressed++
		}
		if r.Compressed {
			stats.Compressed++
		}
	}
	return stats
}

// extractor holds the state shared by the workers of one extraction.
// Everything but the counters is read-only once built.
type extractor struct {
	cfg  extractConfig
	src  io.ReaderAt
	root string
	sink *batch.FileSink
	proc *batch.Processor

	bytesTotal uint64
	filesTotal int
	bytesDone  atomic.Uint64
	filesDone  atomic.Int64
}

func newExtractor(cfg extractConfig, src io.ReaderAt, a *bar.Archive, outputDir string) (*extractor, error) {
	root, err := bar.CleanRoot(a.RootPath)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	var total uint64
	for i := range a.Entries {
		total += uint64(a.Entries[i].Size)
	}
	return &extractor{
		cfg:  cfg,
		src:  src,
		root: root,
		sink: batch.NewFileSink(outputDir),
		proc: batch.NewProcessor(
			batch.WithWorkers(cfg.workers),
			batch.WithMemoryBudget(cfg.memoryBudget),
			batch.WithProcessorLogger(cfg.logger),
		),
		bytesTotal: total,
		filesTotal: len(a.Entries),
	}, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (x *extractor) log() *slog.Logger {
	if x.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.cfg.logger
}

// extract runs one entry through the pipeline. The returned result is
// meaningful even when err is non-nil.
func (x *extractor) extract(ctx context.Context, e *bar.Entry) (res EntryResult, err error) {
	res = EntryResult{Name: e.Name, State: StateLocated}
	defer func() {
		if err != nil {
			err = &EntryError{Path: e.Name, State: res.State, Err: err}
			res.State = StateFailed
		}
	}()

	rel, err := e.Path()
	if err != nil {
		return res, err
	}
	rel = path.Join(x.root, rel)

	st, err := x.sink.Stage(rel)
	if err != nil {
		return res, err
	}
	defer func() { _ = st.Discard() }() //nolint:errcheck // no-op once committed

	buf := stream.GetBuffer()
	_, err = bar.CopyEntry(ctx, st, x.src, e, *buf)
	stream.PutBuffer(buf)
	if err != nil {
		return res, err
	}
	res.State = StateExtractedRaw

	compressed, err := sniffCompressed(st)
	if err != nil {
		return res, err
	}
	keep := hasExt(rel, x.cfg.keepCompressed)
	switch {
	case compressed && !keep:
		next, err := x.transform(st, rel, func(w io.Writer, r io.Reader) error {
			_, err := l33t.Decode(ctx, w, r)
			return err
		})
		if err != nil {
			return res, err
		}
		st = next
		res.State = StateDecompressed
		res.Decompressed = true
	case !compressed && keep:
		size := int64(e.Size)
		next, err := x.transform(st, rel, func(w io.Writer, r io.Reader) error {
			_, err := l33t.Encode(ctx, w, r, size)
			return err
		})
		if err != nil {
			return res, err
		}
		st = next
		res.Compressed = true
	}

	final := rel
	if x.cfg.convert && strings.EqualFold(path.Ext(rel), xmbExt) {
		next, conv, err := x.convert(ctx, st, rel)
		if err != nil {
			return res, err
		}
		res.Conversion = conv
		if conv == ConversionApplied {
			st = next
			final = trimExt(rel)
			res.State = StateTreeDecoded
		}
	}

	size, err := st.Size()
	if err != nil {
		return res, err
	}
	var mod time.Time
	if !e.ModTime.IsZero() {
		mod = e.ModTime.Time()
	}
	if err := st.Commit(final, mod); err != nil {
		return res, err
	}
	res.State = StateInstalled
	res.Path = final
	res.Size = size

	x.report(final, uint64(e.Size))
	return res, nil
}

// transform streams the content of src through fn into a new staged file
// and discards src on success.
func (x *extractor) transform(src *batch.Staged, rel string, fn func(w io.Writer, r io.Reader) error) (*batch.Staged, error) {
	r, err := src.Rewind()
	if err != nil {
		return nil, err
	}
	next, err := x.sink.Stage(rel)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriterSize(next, stream.BufferSize)
	err = fn(bw, bufio.NewReaderSize(r, stream.BufferSize))
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		_ = next.Discard() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	_ = src.Discard() //nolint:errcheck // best-effort cleanup
	return next, nil
}

// convert renders a staged XMB document as XML. Decode failures are not
// errors: they yield ConversionFallback and src is left in place. Only
// cancellation and staging failures are returned.
func (x *extractor) convert(ctx context.Context, src *batch.Staged, rel string) (*batch.Staged, Conversion, error) {
	size, err := src.Size()
	if err != nil {
		return nil, ConversionNone, err
	}
	release, err := x.proc.Reserve(ctx, size)
	if err != nil {
		return nil, ConversionNone, err
	}
	defer release()

	r, err := src.Rewind()
	if err != nil {
		return nil, ConversionNone, err
	}
	data, err := sizing.ReadAllWithLimit(r, xmb.DefaultMaxSize, xmb.ErrInvalidDocument)
	if err != nil {
		if errors.Is(err, xmb.ErrInvalidDocument) {
			x.log().Debug("xmb conversion skipped", "entry", rel, "error", err)
			return nil, ConversionFallback, nil
		}
		return nil, ConversionNone, err
	}
	if !xmb.IsXMB(data) {
		x.log().Debug("xmb conversion skipped", "entry", rel, "error", "not an xmb document")
		return nil, ConversionFallback, nil
	}
	doc, err := xmb.Unmarshal(data)
	if err != nil {
		x.log().Debug("xmb conversion failed", "entry", rel, "error", err)
		return nil, ConversionFallback, nil
	}

	next, err := x.sink.Stage(rel)
	if err != nil {
		return nil, ConversionNone, err
	}
	bw := bufio.NewWriterSize(next, stream.BufferSize)
	err = doc.WriteXML(bw)
	if err == nil {
		err = bw.Flush()
	}
	if err != nil {
		_ = next.Discard() //nolint:errcheck // best-effort cleanup
		x.log().Debug("xml render failed", "entry", rel, "error", err)
		return nil, ConversionFallback, nil
	}
	_ = src.Discard() //nolint:errcheck // best-effort cleanup
	return next, ConversionApplied, nil
}

func (x *extractor) report(name string, size uint64) {
	done := x.bytesDone.Add(size)
	files := x.filesDone.Add(1)
	if x.cfg.progress == nil {
		return
	}
	x.cfg.progress(ProgressEvent{
		Stage:      StageExtracting,
		Path:       name,
		BytesDone:  done,
		BytesTotal: x.bytesTotal,
		FilesDone:  int(files),
		FilesTotal: x.filesTotal,
	})
}

// sniffCompressed reports whether the staged file starts with a l33t tag.
func sniffCompressed(st *batch.Staged) (bool, error) {
	r, err := st.Rewind()
	if err != nil {
		return false, err
	}
	var tag [4]byte
	n, err := io.ReadFull(r, tag[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false, err
	}
	return l33t.IsCompressed(tag[:n]), nil
}
