package gamefiles

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/testutil"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// writeTree creates files under dir from a map of slash paths to content.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func entryNames(a *bar.Archive) []string {
	names := make([]string, len(a.Entries))
	for i := range a.Entries {
		names[i] = a.Entries[i].Name
	}
	return names
}

func TestPackRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{
		"unit.xml":        testutil.ItemsXML,
		"bad.xml":         "<a>",
		"sub/map.age4scn": "raw scenario",
		"sub/tex.ddt":     "texture",
		"sub/deep/z.txt":  "z",
		"a/b.txt":         "b",
	})

	out := filepath.Join(dir, "Data.bar")
	stats, err := Pack(context.Background(), in, out, `Data\`)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Files)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.Compressed)

	f, err := bar.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{
		"bad.xml",
		"unit.xml.xmb",
		`a\b.txt`,
		`sub\map.age4scn`,
		`sub\tex.ddt`,
		`sub\deep\z.txt`,
	}, entryNames(f.Archive))
	assert.Equal(t, `Data\`, f.RootPath)
	assert.Equal(t, bar.FileNameHash("Data.bar"), f.Header.FileNameHash)
	assert.Equal(t, uint32(6), f.Header.FileCount)
	assert.Equal(t, stats.Archive.Header, f.Header)

	for i := range f.Entries {
		assert.True(t, f.Entries[i].ModTime.Time().Equal(bar.SentinelTime), f.Entries[i].Name)
	}

	bad, err := f.ReadFile("bad.xml")
	require.NoError(t, err)
	assert.Equal(t, "<a>", string(bad))

	unit, err := f.ReadFile("unit.xml.xmb")
	require.NoError(t, err)
	assert.True(t, xmb.IsXMB(unit))

	scn, err := f.ReadFile("sub/map.age4scn")
	require.NoError(t, err)
	require.True(t, l33t.IsCompressed(scn))

	// Extracting the packed archive restores the tree.
	back := filepath.Join(dir, "back")
	_, err = ExtractAll(context.Background(), out, back)
	require.NoError(t, err)
	read := func(rel string) string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(back, "Data", filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		return string(data)
	}
	assert.Equal(t, testutil.ItemsXML, read("unit.xml"))
	assert.Equal(t, "<a>", read("bad.xml"))
	assert.Equal(t, "texture", read("sub/tex.ddt"))
	assert.Equal(t, "z", read("sub/deep/z.txt"))
	assert.Equal(t, string(scn), read("sub/map.age4scn"))

	// The input tree is untouched.
	got, err := os.ReadFile(filepath.Join(in, "unit.xml"))
	require.NoError(t, err)
	assert.Equal(t, testutil.ItemsXML, string(got))
	_, err = os.Stat(filepath.Join(in, "unit.xml.xmb"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPackKeepsExistingContainers(t *testing.T) {
	t.Parallel()

	packed := testutil.Compress(t, []byte("already"))
	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"m.age4scn": string(packed)})

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "")
	require.NoError(t, err)
	assert.Zero(t, stats.Compressed)

	f, err := bar.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.ReadFile("m.age4scn")
	require.NoError(t, err)
	assert.Equal(t, packed, got)
}

func TestPackWithoutConvert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"unit.xml": testutil.ItemsXML})

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "", PackWithConvert(false))
	require.NoError(t, err)
	assert.Zero(t, stats.Converted)
	assert.Equal(t, []string{"unit.xml"}, entryNames(stats.Archive))
}

func TestPackMarkupExtensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{
		"a.xml":  testutil.ItemsXML,
		"b.tact": testutil.ItemsXML,
	})

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "", PackWithMarkupExtensions("tact"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.xml", "b.tact.xmb"}, entryNames(stats.Archive))
}

func TestPackSeparator(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"sub/tex.ddt": "x"})

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "", PackWithSeparator('/'))
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/tex.ddt"}, entryNames(stats.Archive))
}

func TestPackFileTimes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "x"})
	mod := time.Date(2019, time.March, 4, 5, 6, 7, 250_000_000, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(in, "a.txt"), mod, mod))

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "", PackWithFileTimes(true))
	require.NoError(t, err)
	require.Len(t, stats.Archive.Entries, 1)
	got := stats.Archive.Entries[0].ModTime.Time()
	assert.True(t, got.Equal(mod), "got %v", got)
}

func TestPackTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmpl := bar.Header{Version: 5, Format: 0x11223344, Checksum: 0xdeadbeef}
	tmpl.Reserved[0] = 0x7f
	var buf bytes.Buffer
	_, err := bar.Write(context.Background(), &buf, "tmpl.bar", "", nil, bar.WithHeaderTemplate(tmpl))
	require.NoError(t, err)
	tmplPath := filepath.Join(dir, "tmpl.bar")
	require.NoError(t, os.WriteFile(tmplPath, buf.Bytes(), 0o644))

	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "x"})
	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "", PackWithTemplate(tmplPath))
	require.NoError(t, err)

	h := stats.Archive.Header
	assert.Equal(t, uint32(5), h.Version)
	assert.Equal(t, uint32(0x11223344), h.Format)
	assert.Equal(t, uint32(0xdeadbeef), h.Checksum)
	assert.Equal(t, byte(0x7f), h.Reserved[0])
	assert.Equal(t, uint32(1), h.FileCount)
	assert.Equal(t, bar.FileNameHash("out.bar"), h.FileNameHash)
}

func TestPackBadTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmplPath := filepath.Join(dir, "tmpl.bar")
	require.NoError(t, os.WriteFile(tmplPath, []byte("nope"), 0o644))
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "x"})

	out := filepath.Join(dir, "out.bar")
	_, err := Pack(context.Background(), in, out, "", PackWithTemplate(tmplPath))
	require.ErrorIs(t, err, ErrInvalidArchive)
	_, err = os.Stat(out)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPackProgress(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "aa", "b.txt": "bbb"})

	var stages []ProgressStage
	var last ProgressEvent
	_, err := Pack(context.Background(), in, filepath.Join(dir, "out.bar"), "",
		PackWithProgress(func(ev ProgressEvent) {
			if len(stages) == 0 || stages[len(stages)-1] != ev.Stage {
				stages = append(stages, ev.Stage)
			}
			last = ev
		}))
	require.NoError(t, err)
	assert.Equal(t, []ProgressStage{StageEnumerating, StageStaging, StageWriting}, stages)
	assert.Equal(t, StageWriting, last.Stage)
	assert.Equal(t, uint64(5), last.BytesDone)
	assert.Equal(t, uint64(5), last.BytesTotal)
}

func TestPackEmptyDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	require.NoError(t, os.Mkdir(in, 0o755))

	out := filepath.Join(dir, "out.bar")
	stats, err := Pack(context.Background(), in, out, "")
	require.NoError(t, err)
	assert.Empty(t, stats.Archive.Entries)

	f, err := bar.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, uint32(bar.HeaderSize), f.Header.TableOffset)
}

func TestPackRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{
		"unit.xml":     testutil.ItemsXML,
		"unit.xml.xmb": "stale binary",
	})

	out := filepath.Join(dir, "out.bar")
	_, err := Pack(context.Background(), in, out, "")
	require.ErrorIs(t, err, ErrDuplicateEntry)
	assert.ErrorContains(t, err, "unit.xml")
	_, serr := os.Stat(out)
	require.ErrorIs(t, serr, os.ErrNotExist)

	// Without conversion the two files keep distinct names.
	stats, err := Pack(context.Background(), in, out, "", PackWithConvert(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"unit.xml", "unit.xml.xmb"}, entryNames(stats.Archive))
}

func TestPackRejectsCaseOnlyDifferences(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"sub/A.txt": "upper"})
	require.NoError(t, os.WriteFile(filepath.Join(in, "sub", "a.txt"), []byte("lower"), 0o644))
	entries, err := os.ReadDir(filepath.Join(in, "sub"))
	require.NoError(t, err)
	if len(entries) != 2 {
		t.Skip("filesystem folds case")
	}

	out := filepath.Join(dir, "out.bar")
	_, err = Pack(context.Background(), in, out, "")
	require.ErrorIs(t, err, ErrDuplicateEntry)
	assert.ErrorContains(t, err, "sub/A.txt")
	_, serr := os.Stat(out)
	require.ErrorIs(t, serr, os.ErrNotExist)
}

func TestPackMissingInput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := Pack(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out.bar"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPackCanceled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "in")
	writeTree(t, in, map[string]string{"a.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(dir, "out.bar")
	_, err := Pack(ctx, in, out, "")
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(out)
	require.ErrorIs(t, err, os.ErrNotExist)
}
