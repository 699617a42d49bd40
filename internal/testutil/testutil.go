// Package testutil builds archives and readers for tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// Entry is one file of an archive built by BuildArchive.
type Entry struct {
	Name string
	Data []byte
	// ModTime defaults to bar.SentinelTime.
	ModTime time.Time
}

// BuildArchive returns an encoded archive named fileName.
func BuildArchive(tb testing.TB, fileName, root string, entries ...Entry) []byte {
	tb.Helper()
	sources := make([]bar.Source, len(entries))
	for i, e := range entries {
		mod := e.ModTime
		if mod.IsZero() {
			mod = bar.SentinelTime
		}
		sources[i] = bar.BytesSource(e.Name, e.Data, bar.TimeOf(mod))
	}
	var buf bytes.Buffer
	if _, err := bar.Write(context.Background(), &buf, fileName, root, sources); err != nil {
		tb.Fatalf("build archive: %v", err)
	}
	return buf.Bytes()
}

// WriteArchive writes an archive to dir/fileName and returns its path.
func WriteArchive(tb testing.TB, dir, fileName, root string, entries ...Entry) string {
	tb.Helper()
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, BuildArchive(tb, fileName, root, entries...), 0o644); err != nil {
		tb.Fatalf("write archive: %v", err)
	}
	return path
}

// Compress wraps data in a l33t container.
func Compress(tb testing.TB, data []byte) []byte {
	tb.Helper()
	out, err := l33t.Compress(data)
	if err != nil {
		tb.Fatalf("compress: %v", err)
	}
	return out
}

// ItemsXML is a small document whose root has two item children.
const ItemsXML = "<?xml version=\"1.0\" encoding=\"utf-8\"?>\r\n" +
	"<items version=\"2\">\r\n" +
	"\t<item id=\"1\"/>\r\n" +
	"\t<item name=\"sword\">blade</item>\r\n" +
	"</items>"

// ItemsXMB returns ItemsXML encoded as XMB.
func ItemsXMB(tb testing.TB) []byte {
	tb.Helper()
	doc, err := xmb.ParseXML(bytes.NewReader([]byte(ItemsXML)))
	if err != nil {
		tb.Fatalf("parse: %v", err)
	}
	data, err := doc.MarshalBinary()
	if err != nil {
		tb.Fatalf("encode: %v", err)
	}
	return data
}

// ChunkReader returns at most N bytes per Read.
type ChunkReader struct {
	R io.Reader
	N int
}

// Read implements io.Reader.
func (c *ChunkReader) Read(p []byte) (int, error) {
	if len(p) > c.N {
		p = p[:c.N]
	}
	return c.R.Read(p)
}
