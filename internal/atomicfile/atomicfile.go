// Package atomicfile replaces files through a temp file and rename so readers
// never observe a partially written target.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempPrefix is the name prefix of staging files created next to targets.
const TempPrefix = ".gamefiles-"

// Write creates a temp file in the directory of target, passes it to fill,
// and renames it onto target once fill and Close succeed. On any failure the
// temp file is removed and target is left untouched.
//
// Parent directories are created as needed.
func Write(target string, fill func(w io.Writer) error) (err error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()        //nolint:errcheck // best-effort cleanup
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, target); err != nil {
		return err
	}
	return nil
}

// WriteBytes atomically replaces target with data.
func WriteBytes(target string, data []byte) error {
	return Write(target, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
