package tarball

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/meigma/tarball/internal/fsys"
	"github.com/meigma/tarball/internal/platform"
)

// Tar builds a Tarball from the directory tree at src.
//
// The directory itself is the first entry, so every relative path starts
// with the base name of src. Entry kinds come from Lstat: symbolic links
// are recorded, not followed, and sockets are stored as FIFOs. File bodies
// are opened lazily when the archive is streamed and honour ctx at that
// point too.
//
// src is a host path unless TarWithFilesystem is given.
func Tar(ctx context.Context, src string, opts ...TarOption) (*Tarball, error) {
	cfg := tarConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return tarTree(ctx, src, &cfg)
}

func tarTree(ctx context.Context, src string, cfg *tarConfig) (*Tarball, error) {
	root, base, err := fsys.Locate(cfg.fs, src)
	if err != nil {
		return nil, fmt.Errorf("tar %s: %w", src, err)
	}

	t := New()
	t.logger = cfg.logger
	report := progress(cfg.progress)
	report.report(StageEnumerating, "", 0, 0, 0, 0)

	var bytesSeen uint64
	err = root.Walk(base, func(name string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		kind := kindFromMode(info.Mode())
		uid, gid := platform.FileOwner(info)
		entryOpts := []EntryOption{
			EntryWithKind(kind),
			EntryWithMode(info.Mode()),
			EntryWithModTime(info.ModTime()),
			EntryWithUID(uid),
			EntryWithGID(gid),
		}
		if root.IsHost() && !cfg.noOwners {
			owner, group := platform.OwnerNames(uid, gid)
			entryOpts = append(entryOpts, EntryWithOwner(owner), EntryWithGroup(group))
		}

		var data Data
		switch kind {
		case KindFile:
			data = FromReader(root.LazyReader(ctx, name))
			entryOpts = append(entryOpts, EntryWithSize(info.Size()))
			bytesSeen += uint64(info.Size()) //nolint:gosec // sizes are non-negative
		case KindSymlink:
			target, err := root.Readlink(name)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", name, err)
			}
			entryOpts = append(entryOpts, EntryWithLinkName(target))
		default:
		}

		if err := t.Append(name, data, entryOpts...); err != nil {
			return err
		}
		report.report(StageEnumerating, name, bytesSeen, 0, t.Len(), 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("tar %s: %w", src, err)
	}
	return t, nil
}

// TarFile archives the directory tree at src into the file dest.
//
// dest must not lie inside src. When TarWithFilesystem is given both paths
// refer to that filesystem.
func TarFile(ctx context.Context, src, dest string, opts ...TarOption) (err error) {
	cfg := tarConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	t, err := tarTree(ctx, src, &cfg)
	if err != nil {
		return err
	}

	streamOpts := append([]StreamOption{StreamWithProgress(cfg.progress)}, cfg.streamOps...)
	rc, err := t.Stream(ctx, streamOpts...)
	if err != nil {
		return err
	}
	defer rc.Close()

	var w io.WriteCloser
	if cfg.fs != nil {
		w, err = cfg.fs.Create(dest)
	} else {
		w, err = os.Create(dest)
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		err = errors.Join(err, w.Close())
	}()

	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
