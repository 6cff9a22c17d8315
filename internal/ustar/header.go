// Package ustar encodes and decodes POSIX ustar header blocks.
//
// A header is a fixed 512-byte record made of sixteen NUL-padded ASCII
// fields. Numeric fields hold zero-padded octal strings.
package ustar

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BlockSize is the size of a header record and the archive alignment unit.
const BlockSize = 512

// Magic and Version are the values written to the magic and version fields.
const (
	Magic   = "ustar\x00"
	Version = "00"
)

// Field sizes limiting the length of a split path.
const (
	NameSize   = 100
	PrefixSize = 155
)

// checksumOffset and checksumSize locate the checksum field. Its bytes are
// counted as ASCII spaces when the checksum is computed.
const (
	checksumOffset = 148
	checksumSize   = 8

	// InitialChecksum is the checksum of a block whose bytes are all zero.
	InitialChecksum = checksumSize * ' '
)

var (
	// ErrCorrupted is returned when a header fails checksum validation or
	// the archive ends in the middle of a record.
	ErrCorrupted = errors.New("tarball: archive is corrupted")

	// ErrUnsupportedFormat is returned when the magic field is not ustar.
	ErrUnsupportedFormat = errors.New("tarball: unsupported archive format")

	// ErrFilenameTooLong is returned when a path cannot be split into the
	// prefix and name fields.
	ErrFilenameTooLong = errors.New("tarball: file name too long")

	// ErrFieldOverflow is returned when a formatted value does not fit its field.
	ErrFieldOverflow = errors.New("tarball: header field overflow")
)

// Header holds the string form of every ustar field.
type Header struct {
	Name     string
	Mode     string
	UID      string
	GID      string
	Size     string
	Mtime    string
	Checksum string
	Typeflag string
	Linkname string
	Magic    string
	Version  string
	Uname    string
	Gname    string
	Devmajor string
	Devminor string
	Prefix   string
}

// field describes one slot of the header record.
type field struct {
	name   string
	offset int
	size   int
}

// layout lists the fields in record order. The twelve bytes after prefix
// are padding and are always zero.
var layout = [...]field{
	{"name", 0, 100},
	{"mode", 100, 8},
	{"uid", 108, 8},
	{"gid", 116, 8},
	{"size", 124, 12},
	{"mtime", 136, 12},
	{"checksum", 148, 8},
	{"typeflag", 156, 1},
	{"linkname", 157, 100},
	{"magic", 257, 6},
	{"version", 263, 2},
	{"uname", 265, 32},
	{"gname", 297, 32},
	{"devmajor", 329, 8},
	{"devminor", 337, 8},
	{"prefix", 345, 155},
}

// values returns pointers to the fields of h in layout order.
func (h *Header) values() [len(layout)]*string {
	return [...]*string{
		&h.Name, &h.Mode, &h.UID, &h.GID, &h.Size, &h.Mtime, &h.Checksum,
		&h.Typeflag, &h.Linkname, &h.Magic, &h.Version, &h.Uname, &h.Gname,
		&h.Devmajor, &h.Devminor, &h.Prefix,
	}
}

// Validate reports an error if any field is longer than its slot.
func (h *Header) Validate() error {
	for i, v := range h.values() {
		if len(*v) > layout[i].size {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFieldOverflow, layout[i].name, len(*v), layout[i].size)
		}
	}
	return nil
}

// Format writes every field at its fixed offset into a zeroed block.
// Values longer than their slot are truncated; call Validate first.
func Format(h Header) [BlockSize]byte {
	var block [BlockSize]byte
	for i, v := range h.values() {
		f := layout[i]
		copy(block[f.offset:f.offset+f.size], *v)
	}
	return block
}

// Parse decodes a header block.
//
// It returns ok == false when the block is the all-zero end-of-archive
// marker. A checksum mismatch on any other block yields ErrCorrupted, and
// an unrecognised magic field yields ErrUnsupportedFormat.
func Parse(block []byte) (h Header, ok bool, err error) {
	if len(block) < BlockSize {
		return Header{}, false, fmt.Errorf("%w: short header (%d bytes)", ErrCorrupted, len(block))
	}
	block = block[:BlockSize]

	for i, v := range h.values() {
		f := layout[i]
		raw := block[f.offset : f.offset+f.size]
		if f.name != "magic" {
			if n := bytes.IndexByte(raw, 0); n >= 0 {
				raw = raw[:n]
			}
		}
		*v = strings.TrimSpace(string(raw))
	}

	sum := BlockChecksum(block)
	want, perr := strconv.ParseInt(h.Checksum, 8, 64)
	if perr != nil || sum != want {
		if sum == InitialChecksum {
			return Header{}, false, nil
		}
		return Header{}, false, ErrCorrupted
	}

	if !strings.HasPrefix(h.Magic, "ustar") {
		return Header{}, false, fmt.Errorf("%w: %q", ErrUnsupportedFormat, h.Magic)
	}

	return h, true, nil
}

// BlockChecksum sums the bytes of a header block with the checksum field
// taken as eight ASCII spaces.
func BlockChecksum(block []byte) int64 {
	sum := int64(InitialChecksum)
	for i, b := range block[:BlockSize] {
		if i >= checksumOffset && i < checksumOffset+checksumSize {
			continue
		}
		sum += int64(b)
	}
	return sum
}

// Checksum sums the bytes of every field string with the checksum field
// taken as eight ASCII spaces. For a header whose fields fit their slots it
// equals BlockChecksum(Format(h)).
func Checksum(h Header) int64 {
	h.Checksum = strings.Repeat(" ", checksumSize)
	var sum int64
	for _, v := range h.values() {
		for i := 0; i < len(*v); i++ {
			sum += int64((*v)[i])
		}
	}
	return sum
}

// Seal computes the checksum of h and stores it in the checksum field.
func Seal(h *Header) {
	h.Checksum = FixedOctal(Checksum(*h), checksumSize)
}

// FixedOctal formats v in base 8, left-padded with zeros to width.
//
// v must not be negative; octal fields have no sign.
func FixedOctal(v int64, width int) string {
	s := strconv.FormatInt(v, 8)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ParseOctal parses an octal field. An empty field is zero.
func ParseOctal(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 8, 64)
}

// Padding returns the number of zero bytes that follow a body of the given
// size to reach the next block boundary.
func Padding(size int64) int64 {
	return (BlockSize - size%BlockSize) % BlockSize
}

// Split divides p into the prefix and name fields.
//
// Paths of at most NameSize bytes are stored in name alone. Longer paths are
// split at the last slash at or before byte PrefixSize; the part after the
// slash must fit in name.
func Split(p string) (prefix, name string, err error) {
	if len(p) <= NameSize {
		return "", p, nil
	}
	i := strings.LastIndexByte(p[:min(len(p), PrefixSize+1)], '/')
	if i < 0 {
		return "", "", ErrFilenameTooLong
	}
	prefix, name = p[:i], p[i+1:]
	if name == "" || len(name) > NameSize {
		return "", "", ErrFilenameTooLong
	}
	return prefix, name, nil
}
