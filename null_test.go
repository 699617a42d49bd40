package gamefiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/testutil"
)

func TestCreateNullArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmpl := testutil.WriteArchive(t, dir, "Data.bar", `Data\Sub\`,
		testutil.Entry{Name: "a.txt", Data: []byte("content")},
		testutil.Entry{Name: "b.txt", Data: []byte("more")})

	out := filepath.Join(dir, "out")
	path, err := CreateNullArchive(context.Background(), tmpl, out, "Data.bar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Data", "Sub", "Data.bar"), path)

	f, err := bar.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, `Data\Sub\`, f.RootPath)
	assert.Equal(t, bar.FileNameHash("Data.bar"), f.Header.FileNameHash)
	require.Len(t, f.Entries, 1)
	assert.Equal(t, NullEntryName, f.Entries[0].Name)
	assert.Zero(t, f.Entries[0].Size)
	assert.Equal(t, uint32(bar.HeaderSize), f.Entries[0].Offset)

	// The template is left alone.
	orig, err := bar.OpenFile(tmpl)
	require.NoError(t, err)
	defer orig.Close()
	assert.Len(t, orig.Entries, 2)
}

func TestCreateNullArchiveErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmpl := testutil.WriteArchive(t, dir, "Data.bar", "")

	_, err := CreateNullArchive(context.Background(), tmpl, dir, "../escape.bar")
	require.Error(t, err)
	_, err = CreateNullArchive(context.Background(), tmpl, dir, "")
	require.Error(t, err)

	junk := filepath.Join(dir, "junk.bar")
	require.NoError(t, os.WriteFile(junk, []byte("not an archive at all"), 0o644))
	_, err = CreateNullArchive(context.Background(), junk, dir, "x.bar")
	require.ErrorIs(t, err, ErrInvalidArchive)
}
