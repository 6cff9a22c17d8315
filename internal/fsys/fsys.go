// Package fsys adapts go-billy filesystems to the operations the archiver
// and extractor need.
//
// A host filesystem is rooted at a directory on disk; a virtual filesystem
// is any billy.Filesystem supplied by the caller. Operations billy cannot
// express portably, such as changing modes and times, fall back to the os
// package for host roots and report errors.ErrUnsupported otherwise.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FS is a filesystem rooted at a directory. Paths passed to its methods
// use forward slashes and are relative to that root.
type FS struct {
	fs   billy.Filesystem
	host string
}

// Host returns an FS rooted at the host directory dir.
func Host(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dir, err)
	}
	return &FS{fs: osfs.New(abs), host: abs}, nil
}

// Virtual returns an FS over b.
func Virtual(b billy.Filesystem) *FS {
	return &FS{fs: b}
}

// Locate splits name into a filesystem rooted at its parent directory and
// the final path element. With a nil virtual filesystem name is a host path.
func Locate(virtual billy.Filesystem, name string) (*FS, string, error) {
	if virtual == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, "", fmt.Errorf("resolve %s: %w", name, err)
		}
		base := filepath.Base(abs)
		if base == string(filepath.Separator) || base == "." {
			return nil, "", fmt.Errorf("%s: %w", name, fs.ErrInvalid)
		}
		f, err := Host(filepath.Dir(abs))
		if err != nil {
			return nil, "", err
		}
		return f, base, nil
	}

	clean := strings.Trim(path.Clean(filepath.ToSlash(name)), "/")
	if clean == "" || clean == "." {
		return nil, "", fmt.Errorf("%s: %w", name, fs.ErrInvalid)
	}
	dir, base := path.Split(clean)
	if dir == "" {
		return Virtual(virtual), base, nil
	}
	sub, err := virtual.Chroot(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return nil, "", fmt.Errorf("chroot %s: %w", dir, err)
	}
	return Virtual(sub), base, nil
}

// Dir returns an FS rooted at dir, creating it first.
func Dir(virtual billy.Filesystem, dir string) (*FS, error) {
	if virtual == nil {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		return Host(dir)
	}

	clean := strings.Trim(path.Clean(filepath.ToSlash(dir)), "/")
	if clean == "" || clean == "." {
		return Virtual(virtual), nil
	}
	if err := virtual.MkdirAll(clean, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	sub, err := virtual.Chroot(clean)
	if err != nil {
		return nil, fmt.Errorf("chroot %s: %w", dir, err)
	}
	return Virtual(sub), nil
}

// IsHost reports whether the FS is rooted on the host filesystem.
func (f *FS) IsHost() bool {
	return f.host != ""
}

// Lstat returns file info without following a final symlink.
func (f *FS) Lstat(name string) (fs.FileInfo, error) {
	return f.fs.Lstat(name)
}

// Walk visits root and everything below it in lexical order. The callback
// receives slash-separated paths relative to the FS root.
func (f *FS) Walk(root string, fn func(name string, info fs.FileInfo) error) error {
	return util.Walk(f.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(p), info)
	})
}

// Open opens name for reading.
func (f *FS) Open(name string) (io.ReadCloser, error) {
	return f.fs.Open(name)
}

// Create creates or truncates name for writing.
func (f *FS) Create(name string, perm fs.FileMode) (io.WriteCloser, error) {
	return f.fs.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
}

// MkdirAll creates name and any missing parents.
func (f *FS) MkdirAll(name string, perm fs.FileMode) error {
	return f.fs.MkdirAll(name, perm)
}

// Symlink creates link pointing at target.
func (f *FS) Symlink(target, link string) error {
	return f.fs.Symlink(target, link)
}

// Readlink returns the target of the symlink name.
func (f *FS) Readlink(name string) (string, error) {
	return f.fs.Readlink(name)
}

// Chmod sets the mode of name.
func (f *FS) Chmod(name string, mode fs.FileMode) error {
	if c, ok := f.fs.(billy.Change); ok {
		err := c.Chmod(name, mode)
		if !errors.Is(err, billy.ErrNotSupported) {
			return err
		}
	}
	if f.IsHost() {
		return os.Chmod(f.hostPath(name), mode)
	}
	return errors.ErrUnsupported
}

// Chtimes sets the access and modification times of name.
func (f *FS) Chtimes(name string, atime, mtime time.Time) error {
	if c, ok := f.fs.(billy.Change); ok {
		err := c.Chtimes(name, atime, mtime)
		if !errors.Is(err, billy.ErrNotSupported) {
			return err
		}
	}
	if f.IsHost() {
		return os.Chtimes(f.hostPath(name), atime, mtime)
	}
	return errors.ErrUnsupported
}

func (f *FS) hostPath(name string) string {
	return filepath.Join(f.host, filepath.FromSlash(name))
}

// LazyReader returns a reader that opens name on its first Read and
// closes it at EOF. Reads fail with ctx.Err() once ctx is done.
func (f *FS) LazyReader(ctx context.Context, name string) io.ReadCloser {
	return &lazyReader{ctx: ctx, fs: f, name: name}
}

type lazyReader struct {
	ctx  context.Context
	fs   *FS
	name string
	rc   io.ReadCloser
	done bool
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, err
	}
	if l.done {
		return 0, io.EOF
	}
	if l.rc == nil {
		rc, err := l.fs.Open(l.name)
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", l.name, err)
		}
		l.rc = rc
	}
	n, err := l.rc.Read(p)
	if errors.Is(err, io.EOF) {
		l.done = true
		if cerr := l.rc.Close(); cerr != nil {
			return n, cerr
		}
		l.rc = nil
	}
	return n, err
}

// Close releases the underlying file if it is open.
func (l *lazyReader) Close() error {
	l.done = true
	if l.rc == nil {
		return nil
	}
	err := l.rc.Close()
	l.rc = nil
	return err
}
