package gamefiles

import (
	"context"
	_ "crypto/sha256" // registers the digest.Canonical hash
	"errors"
	"io"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/stream"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// Content kinds reported by Inspect, from a sniff of each entry's first
// 16 bytes.
const (
	KindRaw        = "raw"
	KindCompressed = "l33t"
	KindXMB        = "xmb"
)

// Inspection contains an archive's header and table without extracting it.
type Inspection struct {
	Header   bar.Header
	RootPath string
	// Size is the archive size in bytes.
	Size    int64
	Entries []InspectedEntry
}

// InspectedEntry is one table record plus what Inspect learned about its
// content.
type InspectedEntry struct {
	bar.Entry
	// Kind is KindRaw, KindCompressed or KindXMB.
	Kind string
	// Digest is the content digest, set with InspectWithDigests.
	Digest digest.Digest
}

// InspectOption configures Inspect.
type InspectOption func(*inspectConfig)

type inspectConfig struct {
	digests bool
}

// InspectWithDigests computes a SHA-256 content digest for every entry.
// This reads the whole archive.
func InspectWithDigests(enabled bool) InspectOption {
	return func(cfg *inspectConfig) {
		cfg.digests = enabled
	}
}

// Inspect reads the header and table of the archive at archivePath.
func Inspect(ctx context.Context, archivePath string, opts ...InspectOption) (*Inspection, error) {
	var cfg inspectConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	f, err := bar.OpenFile(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := &Inspection{
		Header:   f.Header,
		RootPath: f.RootPath,
		Size:     f.Size(),
		Entries:  make([]InspectedEntry, len(f.Entries)),
	}
	buf := stream.GetBuffer()
	defer stream.PutBuffer(buf)
	for i := range f.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := &f.Entries[i]
		ie := InspectedEntry{Entry: *e}
		if ie.Kind, err = sniffKind(f.Section(e)); err != nil {
			return nil, err
		}
		if cfg.digests {
			d := digest.Canonical.Digester()
			if _, err := bar.CopyEntry(ctx, d.Hash(), f, e, *buf); err != nil {
				return nil, err
			}
			ie.Digest = d.Digest()
		}
		out.Entries[i] = ie
	}
	return out, nil
}

func sniffKind(r io.Reader) (string, error) {
	var head [16]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	switch {
	case l33t.IsCompressed(head[:n]):
		return KindCompressed, nil
	case xmb.IsXMB(head[:n]):
		return KindXMB, nil
	default:
		return KindRaw, nil
	}
}
