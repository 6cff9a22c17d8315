package tarball

import (
	"errors"
	"fmt"

	"github.com/meigma/tarball/internal/ustar"
)

// Sentinel errors re-exported from internal/ustar.
var (
	// ErrCorrupted is returned when a header checksum does not match or the
	// archive ends in the middle of a header, body, or padding.
	ErrCorrupted = ustar.ErrCorrupted

	// ErrUnsupportedFormat is returned when a header is not a ustar header.
	ErrUnsupportedFormat = ustar.ErrUnsupportedFormat

	// ErrFilenameTooLong is returned when a path does not fit the name and
	// prefix fields. It is matched by *FilenameTooLongError.
	ErrFilenameTooLong = ustar.ErrFilenameTooLong

	// ErrFieldOverflow is returned when a header value does not fit its field.
	ErrFieldOverflow = ustar.ErrFieldOverflow
)

// Sentinel errors specific to the tarball package.
var (
	// ErrBodyUsed is returned when entry bodies are read after the archive
	// has been streamed.
	ErrBodyUsed = errors.New("tarball: body already used")

	// ErrMissingPath is returned when an entry has no relative path.
	ErrMissingPath = errors.New("tarball: missing relative path")

	// ErrMissingSize is returned when a reader is appended without a size.
	ErrMissingSize = errors.New("tarball: missing size for reader data")

	// ErrMissingData is returned when a non-directory entry has no data.
	ErrMissingData = errors.New("tarball: missing data for non-directory entry")

	// ErrSizeMismatch is returned when an entry body is shorter or longer
	// than its declared size.
	ErrSizeMismatch = errors.New("tarball: body size does not match header")

	// ErrInvalidPath is returned for paths that are not valid archive paths
	// or would resolve outside the extraction directory.
	ErrInvalidPath = errors.New("tarball: invalid path")

	// ErrEntryExists is returned when appending a path that is already present.
	ErrEntryExists = errors.New("tarball: entry already exists")
)

// filenameTooLongCode mirrors the HTTP status for oversized header fields.
const filenameTooLongCode = 431

// FilenameTooLongError reports a path that cannot be stored in a ustar header.
type FilenameTooLongError struct {
	Path string
}

// Error implements error.
func (e *FilenameTooLongError) Error() string {
	return fmt.Sprintf("tarball: file name too long: %q (%d bytes)", e.Path, len(e.Path))
}

// Code returns 431.
func (e *FilenameTooLongError) Code() int {
	return filenameTooLongCode
}

// Unwrap returns ErrFilenameTooLong.
func (e *FilenameTooLongError) Unwrap() error {
	return ErrFilenameTooLong
}
