package gamefiles

// ProgressEvent represents a progress update during extraction or packing.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry or file most recently finished, if applicable.
	Path string

	// BytesDone is the number of content bytes completed.
	BytesDone uint64

	// BytesTotal is the total content bytes for the operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of files completed.
	FilesDone int

	// FilesTotal is the total number of files.
	// Zero indicates the total is unknown (e.g., during enumeration).
	FilesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for extraction and packing.
const (
	// StageEnumerating indicates the operation is walking the directory tree.
	StageEnumerating ProgressStage = iota

	// StageStaging indicates input files are being compressed or converted
	// before packing.
	StageStaging

	// StageWriting indicates archive content is being written.
	StageWriting

	// StageExtracting indicates entries are being extracted.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageStaging:
		return "staging"
	case StageWriting:
		return "writing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
