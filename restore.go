package tarball

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/tarball/internal/platform"
)

// restore applies modes and modification times to extracted entries.
//
// When a path repeats, only its last entry is applied. Entries are grouped
// by depth and groups run deepest first, so a directory is finished only
// after everything inside it; setting a directory's time before its
// children would be undone by writing them. Entries within a group run
// concurrently.
func (x *extractor) restore(ctx context.Context, entries []Entry) error {
	entries = lastByPath(entries)
	if len(entries) == 0 {
		return nil
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(depth(b.RelativePath), depth(a.RelativePath))
	})

	report := progress(x.cfg.progress)
	total := len(entries)
	var done atomic.Int64

	for start := 0; start < len(entries); {
		end := start + 1
		d := depth(entries[start].RelativePath)
		for end < len(entries) && depth(entries[end].RelativePath) == d {
			end++
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(x.cfg.workers)
		for _, e := range entries[start:end] {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := x.restoreEntry(&e); err != nil {
					return fmt.Errorf("restore %s: %w", e.RelativePath, err)
				}
				n := done.Add(1)
				report.report(StageRestoring, e.RelativePath, 0, 0, int(n), total)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		start = end
	}
	return nil
}

// lastByPath keeps only the last entry for each path, in the order the
// paths first appeared. It reuses the backing array of entries.
func lastByPath(entries []Entry) []Entry {
	seen := make(map[string]int, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if i, ok := seen[e.RelativePath]; ok {
			out[i] = e
			continue
		}
		seen[e.RelativePath] = len(out)
		out = append(out, e)
	}
	return out
}

// restoreEntry sets the mode and times of one entry. Operations the
// filesystem does not support are skipped.
func (x *extractor) restoreEntry(e *Entry) error {
	if platform.SupportsChmod {
		if err := x.root.Chmod(e.RelativePath, e.Mode.Perm()); err != nil {
			if !errors.Is(err, errors.ErrUnsupported) {
				return err
			}
			x.log().Debug("restore skipped", "path", e.RelativePath, "op", "chmod")
		}
	}
	if err := x.root.Chtimes(e.RelativePath, e.ModTime, e.ModTime); err != nil {
		if !errors.Is(err, errors.ErrUnsupported) {
			return err
		}
		x.log().Debug("restore skipped", "path", e.RelativePath, "op", "chtimes")
	}
	return nil
}

// depth returns the number of elements in a slash-separated path.
func depth(p string) int {
	return strings.Count(p, "/") + 1
}
