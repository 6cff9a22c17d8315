package tarball

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/meigma/tarball/internal/fsys"
	"github.com/meigma/tarball/internal/ioutil"
)

// Untar extracts the archive stored at src into the directory dest,
// creating dest if needed.
//
// Entries are streamed from src without loading the archive into memory.
// Directories, regular files, and symlinks are created; hard links,
// devices, and FIFOs are skipped. Once every entry is written, modes and
// modification times are applied, deepest paths first. Entries whose path
// would leave dest fail with ErrInvalidPath, and symlinks pointing outside
// dest are skipped. Files written before an error are left in place.
//
// src and dest are host paths unless UntarWithFilesystem is given.
func Untar(ctx context.Context, src, dest string, opts ...UntarOption) error {
	cfg := newUntarConfig(opts)

	var f io.ReadCloser
	var info fs.FileInfo
	var err error
	if cfg.fs != nil {
		var bf billy.File
		if bf, err = cfg.fs.Open(src); err == nil {
			f = bf
			info, err = cfg.fs.Stat(src)
		}
	} else {
		var of *os.File
		if of, err = os.Open(src); err == nil {
			f = of
			info, err = of.Stat()
		}
	}
	if f != nil {
		defer f.Close()
	}
	if err != nil {
		return fmt.Errorf("untar %s: %w", src, err)
	}

	if cfg.totalSize == 0 {
		cfg.totalSize = uint64(info.Size()) //nolint:gosec // file sizes are non-negative
	}
	return untar(ctx, f, dest, cfg)
}

// UntarReader extracts the archive read from r into the directory dest.
// It behaves like Untar; progress totals are known only with
// UntarWithTotalSize.
func UntarReader(ctx context.Context, r io.Reader, dest string, opts ...UntarOption) error {
	return untar(ctx, r, dest, newUntarConfig(opts))
}

func untar(ctx context.Context, r io.Reader, dest string, cfg *untarConfig) error {
	root, err := fsys.Dir(cfg.fs, dest)
	if err != nil {
		return fmt.Errorf("untar: %w", err)
	}

	counter := &ioutil.CountingReader{R: ioutil.NewContextReader(ctx, r)}
	dr, release, err := decompress(counter, cfg.compression, !cfg.compressionSet)
	if err != nil {
		return fmt.Errorf("untar: %w", err)
	}
	defer release()

	x := &extractor{
		root:   root,
		cfg:    cfg,
		logger: cfg.logger,
		links:  make(map[string]struct{}),
		buf:    make([]byte, copyBufferSize),
	}
	report := progress(cfg.progress)

	tr := NewReader(dr)
	var pending []Entry
	files := 0
	for {
		e, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("untar: %w", err)
		}

		restore, err := x.extract(ctx, &e, tr)
		if err != nil {
			return fmt.Errorf("untar %s: %w", e.RelativePath, err)
		}
		if restore {
			pending = append(pending, e)
		}
		files++
		report.report(StageExtracting, e.RelativePath, counter.N, cfg.totalSize, files, 0)
	}

	return x.restore(ctx, pending)
}

// extractor writes entries below root.
type extractor struct {
	root   *fsys.FS
	cfg    *untarConfig
	logger *slog.Logger
	links  map[string]struct{} // symlinks created by this extraction
	buf    []byte
}

// log returns the logger, falling back to a discard logger if nil.
func (x *extractor) log() *slog.Logger {
	if x.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return x.logger
}

// extract writes one entry and reports whether its metadata should be
// restored afterwards. e.RelativePath is replaced by its cleaned form.
func (x *extractor) extract(ctx context.Context, e *Entry, body io.Reader) (bool, error) {
	p, err := x.safePath(e.RelativePath)
	if err != nil {
		return false, err
	}
	if p == "." {
		x.log().Debug("entry skipped", "path", p, "reason", "archive root")
		return false, nil
	}
	e.RelativePath = p

	switch e.Kind {
	case KindDirectory:
		if err := x.root.MkdirAll(p, DefaultDirMode); err != nil {
			return false, err
		}
		return true, nil

	case KindFile, KindContiguousFile:
		if err := x.ensureParent(p); err != nil {
			return false, err
		}
		w, err := x.root.Create(p, 0o644)
		if err != nil {
			return false, err
		}
		_, err = ioutil.CopyWithContext(ctx, w, body, x.buf)
		if cerr := w.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return false, err
		}
		x.log().Debug("entry extracted", "path", p, "size", e.Size)
		return true, nil

	case KindSymlink:
		if !safeLinkTarget(p, e.LinkName) {
			x.log().Debug("entry skipped", "path", p, "reason", "symlink target outside destination", "target", e.LinkName)
			return false, nil
		}
		if err := x.ensureParent(p); err != nil {
			return false, err
		}
		if err := x.root.Symlink(e.LinkName, p); err != nil {
			if errors.Is(err, billy.ErrNotSupported) || errors.Is(err, errors.ErrUnsupported) {
				x.log().Debug("entry skipped", "path", p, "reason", "symlinks not supported")
				return false, nil
			}
			return false, err
		}
		x.links[p] = struct{}{}
		x.log().Debug("entry extracted", "path", p, "target", e.LinkName)
		return false, nil

	default:
		x.log().Debug("entry skipped", "path", p, "kind", e.Kind.String())
		return false, nil
	}
}

func (x *extractor) ensureParent(p string) error {
	if dir := parentPath(p); dir != "" {
		return x.root.MkdirAll(dir, DefaultDirMode)
	}
	return nil
}

// safePath cleans an archive path and rejects paths that are absolute,
// climb out of the destination, or pass through a symlink created earlier
// in the same extraction. The destination itself is returned as ".".
func (x *extractor) safePath(name string) (string, error) {
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute path", ErrInvalidPath)
	}
	p := NormalizePath(name)
	if p == "." {
		return p, nil
	}
	if !fs.ValidPath(p) || !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("%w: %q is outside the destination", ErrInvalidPath, name)
	}
	for q := p; q != ""; q = parentPath(q) {
		if _, ok := x.links[q]; ok {
			return "", fmt.Errorf("%w: %q passes through symlink %q", ErrInvalidPath, name, q)
		}
	}
	return p, nil
}

// safeLinkTarget reports whether a symlink at p pointing at target stays
// inside the destination.
func safeLinkTarget(p, target string) bool {
	if target == "" || path.IsAbs(target) || filepath.IsAbs(target) {
		return false
	}
	resolved := path.Join(path.Dir(p), filepath.ToSlash(target))
	return resolved != ".." && !strings.HasPrefix(resolved, "../")
}
