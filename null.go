package gamefiles

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/atomicfile"
)

// NullEntryName is the single, empty entry of an archive made by
// CreateNullArchive.
const NullEntryName = "null"

// CreateNullArchive writes an archive that replaces the one at
// templatePath with a single empty entry. The result keeps the template's
// root path and is written to outputDir/<root path>/fileName, which is
// returned. Installing it in place of a game archive disables that
// archive's content.
func CreateNullArchive(ctx context.Context, templatePath, outputDir, fileName string) (string, error) {
	if fileName == "" || filepath.Base(fileName) != fileName {
		return "", fmt.Errorf("null archive: invalid file name %q", fileName)
	}
	f, err := bar.OpenFile(templatePath)
	if err != nil {
		return "", err
	}
	rootPath := f.RootPath
	if err := f.Close(); err != nil {
		return "", err
	}
	root, err := bar.CleanRoot(rootPath)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}

	out := filepath.Join(outputDir, filepath.FromSlash(root), fileName)
	sources := []bar.Source{bar.BytesSource(NullEntryName, nil, bar.TimeOf(bar.SentinelTime))}
	err = atomicfile.Write(out, func(w io.Writer) error {
		_, err := bar.Write(ctx, w, fileName, rootPath, sources)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("write %s: %w", out, err)
	}
	return out, nil
}
