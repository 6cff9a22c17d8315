package tarball

// ProgressEvent represents a progress update during archiving or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the number of bytes completed in the current stage.
	BytesDone uint64

	// BytesTotal is the total bytes for the current stage.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FilesDone is the number of entries completed.
	FilesDone int

	// FilesTotal is the total number of entries.
	// Zero indicates the total is unknown.
	FilesTotal int
}

// LengthComputable reports whether BytesTotal is known.
func (e ProgressEvent) LengthComputable() bool {
	return e.BytesTotal > 0
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating indicates the source directory is being walked.
	StageEnumerating ProgressStage = iota

	// StageArchiving indicates entries are being written to the stream.
	StageArchiving

	// StageExtracting indicates entries are being written to disk.
	StageExtracting

	// StageRestoring indicates modes and times are being applied.
	StageRestoring
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageArchiving:
		return "archiving"
	case StageExtracting:
		return "extracting"
	case StageRestoring:
		return "restoring"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// Updates are delivered from the goroutine doing the work; implementations
// used with concurrent restore must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)

// progress wraps an optional ProgressFunc.
type progress ProgressFunc

func (p progress) report(stage ProgressStage, path string, bytesDone, bytesTotal uint64, filesDone, filesTotal int) {
	if p == nil {
		return
	}
	p(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		BytesTotal: bytesTotal,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}
