package gamefiles

import (
	"path"
	"strings"
)

// EntryState is the position of one entry in the extraction pipeline:
// Located, ExtractedRaw, then optionally Decompressed and TreeDecoded,
// ending in Installed or Failed.
type EntryState uint8

// Extraction states.
const (
	StateLocated EntryState = iota
	StateExtractedRaw
	StateDecompressed
	StateTreeDecoded
	StateInstalled
	StateFailed
)

func (s EntryState) String() string {
	switch s {
	case StateLocated:
		return "located"
	case StateExtractedRaw:
		return "extracted"
	case StateDecompressed:
		return "decompressed"
	case StateTreeDecoded:
		return "converted"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Conversion reports what happened to the optional XMB to XML step.
type Conversion uint8

const (
	// ConversionNone means the entry was not a conversion candidate.
	ConversionNone Conversion = iota
	// ConversionApplied means the entry was installed as XML.
	ConversionApplied
	// ConversionFallback means conversion failed and the raw bytes were installed.
	ConversionFallback
)

func (c Conversion) String() string {
	switch c {
	case ConversionNone:
		return "none"
	case ConversionApplied:
		return "applied"
	case ConversionFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Default extension sets.
var (
	// DefaultKeepCompressed lists extensions stored as l33t containers.
	DefaultKeepCompressed = []string{".age4scn"}

	// DefaultMarkupExtensions lists extensions converted to XMB when packing.
	DefaultMarkupExtensions = []string{".xml"}
)

// xmbExt marks entries converted to XML on extraction.
const xmbExt = ".xmb"

// hasExt reports whether name ends in one of exts, ignoring case.
func hasExt(name string, exts []string) bool {
	ext := path.Ext(name)
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.EqualFold(ext, normalizeExt(e)) {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, strings.ToLower(normalizeExt(e)))
		}
	}
	return out
}

// trimExt removes the final extension of name. The caller has checked it.
func trimExt(name string) string {
	return name[:len(name)-len(path.Ext(name))]
}
