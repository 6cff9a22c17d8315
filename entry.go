package tarball

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/meigma/tarball/internal/ustar"
)

// Default permission bits for entries appended without EntryWithMode.
const (
	DefaultDirMode  fs.FileMode = 0o755
	DefaultFileMode fs.FileMode = 0o666
)

// Entry describes one member of an archive.
type Entry struct {
	// Name is the display name, normally the last element of RelativePath.
	Name string

	// Kind is the entry type.
	Kind Kind

	// RelativePath is the slash-separated path of the entry within the
	// archive, without a trailing slash. It is unique within a Tarball.
	RelativePath string

	// Size is the body length in bytes. Directories always have size zero.
	Size int64

	// ModTime is the modification time, stored with second precision.
	ModTime time.Time

	// Mode holds the permission bits.
	Mode fs.FileMode

	UID   uint32
	GID   uint32
	Owner string
	Group string

	// LinkName is the target of a hard link or symlink.
	LinkName string
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// entry is an Entry together with its encoded header and unread body.
type entry struct {
	info   Entry
	header [ustar.BlockSize]byte
	body   io.Reader // nil for kinds without content
	view   io.Reader // caller branch handed out by Member.Stream

	// synthetic marks an ancestor directory added by Append.
	synthetic bool
}

// blocks returns the number of archive bytes the entry occupies.
func (e *entry) blocks() int64 {
	return ustar.BlockSize + e.info.Size + ustar.Padding(e.info.Size)
}

// newEntry builds an entry for relativePath from data and options.
func newEntry(relativePath string, data Data, cfg *entryConfig) (*entry, error) {
	size, body, stat, err := data.open(cfg)
	if err != nil {
		return nil, err
	}

	if relativePath == "" && stat != nil {
		relativePath = stat.Name()
	}
	relativePath = NormalizePath(relativePath)
	if relativePath == "." {
		return nil, ErrMissingPath
	}
	if !fs.ValidPath(relativePath) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, relativePath)
	}

	kind := KindFile
	if cfg.kindSet {
		kind = cfg.kind
	}
	if kind == KindDirectory {
		size, body = 0, nil
	} else if body == nil && kind.hasBody() {
		return nil, fmt.Errorf("%s: %w", relativePath, ErrMissingData)
	}

	mode := DefaultFileMode
	if kind == KindDirectory {
		mode = DefaultDirMode
	}
	if cfg.modeSet {
		mode = cfg.mode.Perm()
	}

	mtime := cfg.modTime
	if mtime.IsZero() && stat != nil {
		mtime = stat.ModTime()
	}
	if mtime.IsZero() {
		mtime = time.Now()
	}

	name := cfg.name
	if name == "" {
		name = path.Base(relativePath)
	}

	info := Entry{
		Name:         name,
		Kind:         kind,
		RelativePath: relativePath,
		Size:         size,
		ModTime:      mtime.Truncate(time.Second),
		Mode:         mode,
		UID:          cfg.uid,
		GID:          cfg.gid,
		Owner:        cfg.owner,
		Group:        cfg.group,
		LinkName:     cfg.linkName,
	}
	header, err := encodeHeader(&info)
	if err != nil {
		return nil, err
	}
	return &entry{info: info, header: header, body: body}, nil
}

// encodeHeader renders info as a sealed header block.
func encodeHeader(info *Entry) ([ustar.BlockSize]byte, error) {
	prefix, name, err := ustar.Split(info.RelativePath)
	if err != nil {
		return [ustar.BlockSize]byte{}, &FilenameTooLongError{Path: info.RelativePath}
	}

	if info.ModTime.Unix() < 0 {
		return [ustar.BlockSize]byte{}, fmt.Errorf("%s: %w: mtime %s is before 1970", info.RelativePath, ErrFieldOverflow, info.ModTime.UTC().Format(time.RFC3339))
	}

	h := ustar.Header{
		Name:     name,
		Mode:     ustar.FixedOctal(int64(info.Mode.Perm()), 8),
		UID:      ustar.FixedOctal(int64(info.UID), 8),
		GID:      ustar.FixedOctal(int64(info.GID), 8),
		Size:     ustar.FixedOctal(info.Size, 12),
		Mtime:    ustar.FixedOctal(info.ModTime.Unix(), 12),
		Typeflag: info.Kind.typeflag(),
		Magic:    ustar.Magic,
		Version:  ustar.Version,
		Uname:    info.Owner,
		Gname:    info.Group,
		Devmajor: ustar.FixedOctal(0, 8),
		Devminor: ustar.FixedOctal(0, 8),
		Prefix:   prefix,
	}
	if info.Kind == KindLink || info.Kind == KindSymlink {
		h.Linkname = info.LinkName
	}
	if err := h.Validate(); err != nil {
		return [ustar.BlockSize]byte{}, fmt.Errorf("%s: %w", info.RelativePath, err)
	}
	ustar.Seal(&h)
	return ustar.Format(h), nil
}

// entryFromHeader decodes the entry described by a parsed header.
func entryFromHeader(h *ustar.Header) (Entry, error) {
	relativePath := strings.TrimRight(h.Name, "/")
	if h.Prefix != "" {
		relativePath = h.Prefix + "/" + relativePath
	}
	if relativePath == "" {
		return Entry{}, errors.Join(ErrCorrupted, ErrMissingPath)
	}
	// Absolute names are kept as written so extraction can refuse them.
	if !strings.HasPrefix(relativePath, "/") {
		relativePath = NormalizePath(relativePath)
	}

	var nums [5]int64
	for i, field := range []string{h.Size, h.Mtime, h.Mode, h.UID, h.GID} {
		v, err := ustar.ParseOctal(field)
		if err != nil || v < 0 {
			return Entry{}, fmt.Errorf("%w: bad numeric field %q in %s", ErrCorrupted, field, relativePath)
		}
		nums[i] = v
	}

	kind := kindFromTypeflag(h.Typeflag)
	e := Entry{
		Name:         path.Base(relativePath),
		Kind:         kind,
		RelativePath: relativePath,
		Size:         nums[0],
		ModTime:      time.Unix(nums[1], 0),
		Mode:         fs.FileMode(nums[2]).Perm(), //nolint:gosec // masked to permission bits
		UID:          uint32(nums[3]),             //nolint:gosec // field is at most 8 octal digits
		GID:          uint32(nums[4]),             //nolint:gosec // field is at most 8 octal digits
		Owner:        h.Uname,
		Group:        h.Gname,
		LinkName:     h.Linkname,
	}
	return e, nil
}
