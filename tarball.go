package tarball

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/meigma/tarball/internal/tee"
	"github.com/meigma/tarball/internal/ustar"
)

// trailerSize is the length of the two zero blocks ending an archive.
const trailerSize = 2 * ustar.BlockSize

// Tarball is an ordered collection of archive entries keyed by relative path.
//
// Bodies are held as readers and consumed when the archive is streamed, so
// Stream may be called only once. A Tarball is safe for concurrent use.
type Tarball struct {
	mu       sync.Mutex
	entries  []*entry
	index    map[string]int
	bodyUsed bool
	logger   *slog.Logger
}

// New returns an empty Tarball.
func New() *Tarball {
	return &Tarball{index: make(map[string]int)}
}

// log returns the logger, falling back to a discard logger if nil.
func (t *Tarball) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Append adds an entry at relativePath.
//
// Missing ancestor directories are added first, with default metadata. An
// empty relativePath is allowed only for FromFile data, whose base name is
// used instead. Appending a path that already exists fails with
// ErrEntryExists, except that a directory may take over an ancestor that
// was added implicitly.
func (t *Tarball) Append(relativePath string, data Data, opts ...EntryOption) error {
	e, err := newEntry(relativePath, data, newEntryConfig(opts))
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bodyUsed {
		return ErrBodyUsed
	}
	if i, ok := t.index[e.info.RelativePath]; ok {
		old := t.entries[i]
		if old.synthetic && e.info.IsDir() {
			t.entries[i] = e
			return nil
		}
		return fmt.Errorf("%w: %s", ErrEntryExists, e.info.RelativePath)
	}
	if err := t.ensureParents(e.info.RelativePath); err != nil {
		return err
	}
	t.push(e)
	t.log().Debug("entry appended", "path", e.info.RelativePath, "kind", e.info.Kind.String(), "size", e.info.Size)
	return nil
}

// ensureParents appends a directory entry for every missing ancestor of p,
// outermost first.
func (t *Tarball) ensureParents(p string) error {
	dir := parentPath(p)
	if dir == "" {
		return nil
	}
	if _, ok := t.index[dir]; ok {
		return nil
	}
	if err := t.ensureParents(dir); err != nil {
		return err
	}
	e, err := newEntry(dir, Data{}, &entryConfig{kind: KindDirectory, kindSet: true})
	if err != nil {
		return err
	}
	e.synthetic = true
	t.push(e)
	return nil
}

func (t *Tarball) push(e *entry) {
	t.index[e.info.RelativePath] = len(t.entries)
	t.entries = append(t.entries, e)
}

// put stores e, replacing an entry with the same path in place.
func (t *Tarball) put(e *entry) {
	if i, ok := t.index[e.info.RelativePath]; ok {
		t.entries[i] = e
		return
	}
	t.push(e)
}

// Member is an entry returned by Retrieve.
type Member struct {
	Entry

	t *Tarball
	e *entry
}

// Retrieve returns the entry at relativePath, or nil if there is none.
func (t *Tarball) Retrieve(relativePath string) *Member {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[NormalizePath(relativePath)]
	if !ok {
		return nil
	}
	e := t.entries[i]
	return &Member{Entry: e.info, t: t, e: e}
}

// Stream returns a reader over the entry body that leaves the archive's
// own copy intact. Every call returns the same reader.
//
// Bytes read here are buffered in memory until the archive is streamed,
// so reading large bodies this way is costly. Stream fails with
// ErrBodyUsed once the archive itself has been streamed.
func (m *Member) Stream() (io.Reader, error) {
	m.t.mu.Lock()
	defer m.t.mu.Unlock()

	if m.e.view != nil {
		return m.e.view, nil
	}
	if m.t.bodyUsed {
		return nil, ErrBodyUsed
	}
	if m.e.body == nil {
		m.e.view = eofReader{}
		return m.e.view, nil
	}
	m.e.body, m.e.view = tee.Split(m.e.body)
	return m.e.view, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// Remove deletes the entry at relativePath and reports whether it existed.
// Descendants of a removed directory are kept.
func (t *Tarball) Remove(relativePath string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := NormalizePath(relativePath)
	i, ok := t.index[p]
	if !ok {
		return false
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	t.reindex()
	return true
}

func (t *Tarball) reindex() {
	clear(t.index)
	for i, e := range t.entries {
		t.index[e.info.RelativePath] = i
	}
}

// Replace swaps the entry at relativePath for a new one built from data,
// keeping its position. It returns false when there is no such entry or
// when the replacement would turn a directory into a non-directory or the
// reverse. Errors building the new entry are returned as errors.
func (t *Tarball) Replace(relativePath string, data Data, opts ...EntryOption) (bool, error) {
	p := NormalizePath(relativePath)
	cfg := newEntryConfig(opts)

	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[p]
	if !ok {
		return false, nil
	}
	oldDir := t.entries[i].info.IsDir()
	newDir := cfg.kindSet && cfg.kind == KindDirectory
	if oldDir != newDir {
		return false, nil
	}
	if t.bodyUsed {
		return false, ErrBodyUsed
	}

	e, err := newEntry(p, data, cfg)
	if err != nil {
		return false, err
	}
	t.entries[i] = e
	return true, nil
}

// Entries returns a live view of the entries in archive order. Changes made
// between iterations are visible to later iterations.
func (t *Tarball) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range t.All() {
			if !yield(e) {
				return
			}
		}
	}
}

// All is like Entries but also yields each entry's position.
func (t *Tarball) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i := 0; ; i++ {
			t.mu.Lock()
			if i >= len(t.entries) {
				t.mu.Unlock()
				return
			}
			e := t.entries[i].info
			t.mu.Unlock()
			if !yield(i, e) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (t *Tarball) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Size returns the exact length in bytes of the uncompressed stream:
// every header, body and padding, plus the two-block trailer.
func (t *Tarball) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := int64(trailerSize)
	for _, e := range t.entries {
		size += e.blocks()
	}
	return size
}

// BodyUsed reports whether Stream has been called.
func (t *Tarball) BodyUsed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bodyUsed
}

// TreeView returns the entries arranged as a tree under a synthetic root.
// Children are ordered directories first, then by name.
func (t *Tarball) TreeView() *Tree {
	t.mu.Lock()
	entries := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		entries[i] = e.info
	}
	t.mu.Unlock()

	root := Entry{
		Kind:    KindDirectory,
		Mode:    DefaultDirMode,
		ModTime: time.Now(),
	}
	return buildTree(root, entries)
}
