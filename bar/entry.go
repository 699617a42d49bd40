package bar

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/meigma/gamefiles/internal/binio"
)

// SentinelTime is the timestamp recorded for entries when file times are
// not preserved.
var SentinelTime = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

// LastWriteTime is the broken-down UTC timestamp stored with each entry.
type LastWriteTime struct {
	Year        int16
	Month       int16
	DayOfWeek   int16 // 0 is Sunday
	Day         int16
	Hour        int16
	Minute      int16
	Second      int16
	Millisecond int16
}

// TimeOf returns the record for t, converted to UTC.
func TimeOf(t time.Time) LastWriteTime {
	t = t.UTC()
	//nolint:gosec // calendar fields fit int16 for any plausible year
	return LastWriteTime{
		Year:        int16(t.Year()),
		Month:       int16(t.Month()),
		DayOfWeek:   int16(t.Weekday()),
		Day:         int16(t.Day()),
		Hour:        int16(t.Hour()),
		Minute:      int16(t.Minute()),
		Second:      int16(t.Second()),
		Millisecond: int16(t.Nanosecond() / int(time.Millisecond)),
	}
}

// Time returns the record as a UTC time. DayOfWeek is ignored.
func (lt LastWriteTime) Time() time.Time {
	return time.Date(int(lt.Year), time.Month(lt.Month), int(lt.Day),
		int(lt.Hour), int(lt.Minute), int(lt.Second),
		int(lt.Millisecond)*int(time.Millisecond), time.UTC)
}

// IsZero reports whether every field is zero.
func (lt LastWriteTime) IsZero() bool {
	return lt == LastWriteTime{}
}

func (lt LastWriteTime) write(w *binio.Writer) {
	for _, v := range [...]int16{lt.Year, lt.Month, lt.DayOfWeek, lt.Day, lt.Hour, lt.Minute, lt.Second, lt.Millisecond} {
		w.Int16(v)
	}
}

func readLastWriteTime(r *binio.Reader) LastWriteTime {
	return LastWriteTime{
		Year:        r.Int16(),
		Month:       r.Int16(),
		DayOfWeek:   r.Int16(),
		Day:         r.Int16(),
		Hour:        r.Int16(),
		Minute:      r.Int16(),
		Second:      r.Int16(),
		Millisecond: r.Int16(),
	}
}

// Entry is one file record of the archive table.
type Entry struct {
	// Name is the path relative to the archive root, as stored. Archives
	// written by the game tools use '\' as the separator.
	Name   string
	Offset uint32
	Size   uint32
	// Size2 duplicates Size on write and is preserved but ignored on read.
	Size2   uint32
	ModTime LastWriteTime
}

// minEntrySize is the encoded size of an entry with an empty name.
const minEntrySize = 4 + 4 + 4 + 16 + 4

// Path returns the entry name with '/' separators and validates that it
// stays inside the extraction directory.
func (e *Entry) Path() (string, error) {
	return CleanName(e.Name)
}

// End returns the offset one past the entry's content.
func (e *Entry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}

func (e *Entry) write(w *binio.Writer) {
	w.Uint32(e.Offset)
	w.Uint32(e.Size)
	w.Uint32(e.Size2)
	e.ModTime.write(w)
	w.String(e.Name)
}

func readEntry(r *binio.Reader) Entry {
	var e Entry
	e.Offset = r.Uint32()
	e.Size = r.Uint32()
	e.Size2 = r.Uint32()
	e.ModTime = readLastWriteTime(r)
	e.Name = r.String()
	return e
}

// CleanName converts a stored name to a slash-separated relative path.
// Leading separators are dropped. Names that are empty or contain "." or
// ".." elements are rejected with ErrUnsafeName.
func CleanName(name string) (string, error) {
	p := strings.TrimLeft(slashed(name), "/")
	if p == "" || !fs.ValidPath(p) || strings.Contains(p, ":") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	return p, nil
}

// CleanRoot is CleanName for the archive root path, which may be empty.
func CleanRoot(root string) (string, error) {
	p := strings.Trim(slashed(root), "/")
	if p == "" {
		return "", nil
	}
	return CleanName(p)
}

// StoredName converts a slash-separated relative path to the stored form
// using sep as the separator.
func StoredName(p string, sep rune) string {
	p = path.Clean(slashed(p))
	if sep == '/' {
		return p
	}
	return strings.ReplaceAll(p, "/", string(sep))
}

func slashed(name string) string {
	return strings.ReplaceAll(name, `\`, "/")
}

// sameName compares names case-insensitively, treating '\' and '/' alike.
func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimLeft(slashed(a), "/"), strings.TrimLeft(slashed(b), "/"))
}
