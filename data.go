package tarball

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
)

type dataKind uint8

const (
	dataNone dataKind = iota
	dataBytes
	dataReader
	dataFile
)

// Data is the content of an entry. The zero Data carries no content and is
// valid only for directories and other kinds without a body.
type Data struct {
	kind dataKind
	b    []byte
	r    io.Reader
	f    fs.File
}

// FromString returns Data holding the UTF-8 bytes of s.
func FromString(s string) Data {
	return Data{kind: dataBytes, b: []byte(s)}
}

// FromBytes returns Data holding b. The slice is not copied.
func FromBytes(b []byte) Data {
	return Data{kind: dataBytes, b: b}
}

// FromReader returns Data read from r when the archive is streamed.
// The size must be given with EntryWithSize.
func FromReader(r io.Reader) Data {
	return Data{kind: dataReader, r: r}
}

// FromFile returns Data read from f. The size, modification time, and,
// when the relative path is empty, the name come from f.Stat.
func FromFile(f fs.File) Data {
	return Data{kind: dataFile, f: f}
}

// IsZero reports whether d carries no content.
func (d Data) IsZero() bool {
	return d.kind == dataNone
}

// open resolves the body and size of d.
func (d Data) open(cfg *entryConfig) (size int64, body io.Reader, stat fs.FileInfo, err error) {
	switch d.kind {
	case dataBytes:
		size = int64(len(d.b))
		if cfg.sizeSet && cfg.size != size {
			return 0, nil, nil, fmt.Errorf("%w: declared %d, have %d", ErrSizeMismatch, cfg.size, size)
		}
		return size, bytes.NewReader(d.b), nil, nil
	case dataReader:
		if !cfg.sizeSet {
			return 0, nil, nil, ErrMissingSize
		}
		if cfg.size < 0 {
			return 0, nil, nil, fmt.Errorf("%w: negative size %d", ErrSizeMismatch, cfg.size)
		}
		return cfg.size, d.r, nil, nil
	case dataFile:
		stat, err = d.f.Stat()
		if err != nil {
			return 0, nil, nil, fmt.Errorf("stat: %w", err)
		}
		size = stat.Size()
		if cfg.sizeSet {
			size = cfg.size
		}
		return size, d.f, stat, nil
	default:
		return 0, nil, nil, nil
	}
}
