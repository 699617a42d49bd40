//go:build windows

package platform

import (
	"os"
	"time"

	"golang.org/x/sys/windows"
)

// SetFileTimes stamps the creation, access and modification times of path
// with t.
func SetFileTimes(path string, t time.Time) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return &os.PathError{Op: "settimes", Path: path, Err: err}
	}
	h, err := windows.CreateFile(p, windows.FILE_WRITE_ATTRIBUTES,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return &os.PathError{Op: "settimes", Path: path, Err: err}
	}
	defer windows.CloseHandle(h) //nolint:errcheck // handle opened for attributes only

	ft := windows.NsecToFiletime(t.UnixNano())
	if err := windows.SetFileTime(h, &ft, &ft, &ft); err != nil {
		return &os.PathError{Op: "settimes", Path: path, Err: err}
	}
	return nil
}
