package gamefiles

import (
	"errors"
	"fmt"

	"github.com/meigma/gamefiles/bar"
	"github.com/meigma/gamefiles/internal/sizing"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// Errors re-exported from the codec packages.
var (
	// ErrEntryNotFound is returned when an archive has no entry with the
	// requested name. It matches fs.ErrNotExist.
	ErrEntryNotFound = bar.ErrNotFound

	// ErrInvalidArchive is returned when an archive header or table is malformed.
	ErrInvalidArchive = bar.ErrInvalidArchive

	// ErrUnsafeName is returned for entry names that would escape the output directory.
	ErrUnsafeName = bar.ErrUnsafeName

	// ErrInvalidContainer is returned when a compressed container has an unknown tag.
	ErrInvalidContainer = l33t.ErrInvalidFormat

	// ErrInvalidDocument is returned when binary XMB data is malformed.
	ErrInvalidDocument = xmb.ErrInvalidDocument

	// ErrTruncated is returned when input ends before a declared length is satisfied.
	ErrTruncated = bar.ErrTruncated

	// ErrSizeOverflow is returned when a size value overflows.
	ErrSizeOverflow = sizing.ErrOverflow

	// ErrDuplicateEntry is returned by Pack when two input files would be
	// stored under names that differ only in case or separator.
	ErrDuplicateEntry = errors.New("gamefiles: duplicate entry name")
)

// EntryError records the failure of one archive entry during extraction.
// ExtractAll joins every EntryError with errors.Join, so callers can
// inspect each failure with errors.As or EntryErrors.
type EntryError struct {
	// Path is the entry name as stored in the archive.
	Path string
	// State is the last state the entry reached before failing.
	State EntryState
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.State, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// EntryErrors returns every EntryError joined into err.
func EntryErrors(err error) []*EntryError {
	var out []*EntryError
	var walk func(error)
	walk = func(err error) {
		if err == nil {
			return
		}
		if ee, ok := err.(*EntryError); ok { //nolint:errorlint // walking the join tree by hand
			out = append(out, ee)
			return
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint // same
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		walk(errors.Unwrap(err))
	}
	walk(err)
	return out
}
