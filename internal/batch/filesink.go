package batch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/meigma/gamefiles/internal/platform"
)

// TempPrefix begins the name of every staged file.
const TempPrefix = ".gamefiles-"

// FileSink stages files under a destination directory and installs them
// by rename, so a partially written file is never visible at its final
// path. Paths given to a FileSink are slash-separated and relative to the
// destination; they cannot escape it.
type FileSink struct {
	destDir string
}

// NewFileSink creates a FileSink that writes under destDir.
// Parent directories are created as needed.
func NewFileSink(destDir string) *FileSink {
	return &FileSink{destDir: destDir}
}

// Stage creates an empty temp file in the directory that will hold rel.
func (s *FileSink) Stage(rel string) (*Staged, error) {
	if !fs.ValidPath(rel) || rel == "." {
		return nil, &fs.PathError{Op: "stage", Path: rel, Err: fs.ErrInvalid}
	}
	if err := os.MkdirAll(s.destDir, 0o750); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	dir := filepath.Dir(filepath.FromSlash(rel))
	if err := root.MkdirAll(dir, 0o750); err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create directory %s: %w", filepath.Join(s.destDir, dir), err)
	}
	f, tempRel, err := createTempFile(root, dir, TempPrefix)
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &Staged{sink: s, root: root, file: f, tempRel: tempRel, dir: dir}, nil
}

// Staged is a temp file awaiting Commit or Discard. It is not safe for
// concurrent use.
type Staged struct {
	sink    *FileSink
	root    *os.Root
	file    *os.File
	tempRel string
	dir     string
	done    bool
}

// Write implements io.Writer.
func (c *Staged) Write(p []byte) (int, error) {
	return c.file.Write(p)
}

// Rewind seeks the temp file back to its start and returns it for reading.
func (c *Staged) Rewind() (io.ReadSeeker, error) {
	if _, err := c.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return c.file, nil
}

// Size returns the number of bytes written so far.
func (c *Staged) Size() (int64, error) {
	info, err := c.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Path returns the temp file's path on disk.
func (c *Staged) Path() string {
	return filepath.Join(c.sink.destDir, c.tempRel)
}

// Commit installs the temp file at rel, which must be in the directory the
// file was staged in. Any existing file at rel is removed first. When
// modTime is non-zero the installed file is stamped with it.
func (c *Staged) Commit(rel string, modTime time.Time) error {
	if c.done {
		return errors.New("batch: staged file already finished")
	}
	c.done = true
	defer c.root.Close() //nolint:errcheck // best-effort cleanup

	destRel := filepath.FromSlash(rel)
	if !fs.ValidPath(rel) || filepath.Dir(destRel) != c.dir {
		_ = c.file.Close()           //nolint:errcheck // best-effort cleanup
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return &fs.PathError{Op: "commit", Path: rel, Err: fs.ErrInvalid}
	}
	if err := c.file.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := c.root.Remove(destRel); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("remove existing %s: %w", rel, err)
	}
	if err := c.root.Rename(c.tempRel, destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", rel, err)
	}
	if !modTime.IsZero() {
		if err := platform.SetFileTimes(filepath.Join(c.sink.destDir, destRel), modTime); err != nil {
			return fmt.Errorf("set times: %w", err)
		}
	}
	return nil
}

// Discard closes and removes the temp file. It is a no-op after Commit
// or a previous Discard.
func (c *Staged) Discard() error {
	if c.done {
		return nil
	}
	c.done = true
	_ = c.file.Close() //nolint:errcheck // we're cleaning up
	if err := c.root.Remove(c.tempRel); err != nil {
		_ = c.root.Close() //nolint:errcheck // best-effort cleanup
		return err
	}
	return c.root.Close()
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
