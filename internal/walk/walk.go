// Package walk lists the regular files of a directory tree in archive order.
package walk

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// File is one regular file found by Files.
type File struct {
	// Path is slash-separated and relative to the walked root.
	Path string
	Info fs.FileInfo
}

// Files lists the regular files under root. The files of a directory come
// before the contents of its subdirectories, and both are visited in name
// order. Symlinks and other non-regular files are skipped.
func Files(ctx context.Context, root *os.Root) ([]File, error) {
	var out []File
	if err := walkDir(ctx, root, ".", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkDir(ctx context.Context, root *os.Root, dir string, out *[]File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := fs.ReadDir(root.FS(), dir)
	if err != nil {
		return err
	}

	var subdirs []string
	for _, d := range entries {
		p := path.Join(dir, d.Name())
		if d.IsDir() {
			subdirs = append(subdirs, p)
			continue
		}
		info, ok, err := resolveInfo(root, p, d)
		if err != nil {
			return err
		}
		if ok {
			*out = append(*out, File{Path: p, Info: info})
		}
	}
	for _, sub := range subdirs {
		if err := walkDir(ctx, root, sub, out); err != nil {
			return err
		}
	}
	return nil
}

// resolveInfo returns the FileInfo of a directory entry. ok is false for
// symlinks and non-regular files, which the caller skips.
func resolveInfo(root *os.Root, p string, d fs.DirEntry) (info fs.FileInfo, ok bool, err error) {
	dtype := d.Type()
	if dtype&fs.ModeSymlink != 0 {
		return nil, false, nil
	}
	if dtype == 0 {
		linfo, err := root.Lstat(filepath.FromSlash(p))
		if err != nil {
			return nil, false, err
		}
		if !linfo.Mode().IsRegular() {
			return nil, false, nil
		}
		return linfo, true, nil
	}
	if !dtype.IsRegular() {
		return nil, false, nil
	}
	info, err = d.Info()
	if err != nil {
		return nil, false, err
	}
	if !info.Mode().IsRegular() {
		return nil, false, nil
	}
	return info, true, nil
}
