package tarball

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/meigma/tarball/internal/ioutil"
	"github.com/meigma/tarball/internal/ustar"
)

const copyBufferSize = 32 * 1024

// Stream renders the archive and returns it as a reader.
//
// Each entry is written as its header, exactly Size bytes of body, and zero
// padding to the next block boundary; two zero blocks end the archive. A
// body that ends early or has bytes left over fails the stream with
// ErrSizeMismatch. Bodies implementing io.Closer are closed once written.
//
// Stream consumes the entry bodies, so it can be called only once; later
// calls return ErrBodyUsed. The archive is produced as the returned reader
// is read, and closing the reader early stops production. Cancelling ctx
// fails the reader with ctx.Err().
func (t *Tarball) Stream(ctx context.Context, opts ...StreamOption) (io.ReadCloser, error) {
	cfg := streamConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	t.mu.Lock()
	if t.bodyUsed {
		t.mu.Unlock()
		return nil, ErrBodyUsed
	}
	t.bodyUsed = true
	entries := slices.Clone(t.entries)
	t.mu.Unlock()

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeArchive(ctx, pw, entries, &cfg))
	}()
	return pr, nil
}

// writeArchive writes entries to w through the configured codec.
func writeArchive(ctx context.Context, w io.Writer, entries []*entry, cfg *streamConfig) error {
	defer func() {
		for _, e := range entries {
			_ = ioutil.CloseReader(e.body)
		}
	}()

	zw, err := cfg.compression.newWriter(w, cfg.level)
	if err != nil {
		return err
	}

	var total uint64 = trailerSize
	for _, e := range entries {
		total += uint64(e.blocks()) //nolint:gosec // sizes are non-negative
	}

	// Progress counts archive bytes before compression.
	cw := &ioutil.CountingWriter{W: zw}
	report := progress(cfg.progress)
	buf := make([]byte, copyBufferSize)
	var zero [ustar.BlockSize]byte
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(ctx, cw, e, buf, zero[:]); err != nil {
			return fmt.Errorf("%s: %w", e.info.RelativePath, err)
		}
		report.report(StageArchiving, e.info.RelativePath, cw.N, total, i+1, len(entries))
	}

	for range 2 {
		if _, err := cw.Write(zero[:]); err != nil {
			return err
		}
	}
	return zw.Close()
}

// writeEntry writes one header, body, and padding.
func writeEntry(ctx context.Context, w io.Writer, e *entry, buf, zero []byte) error {
	if _, err := w.Write(e.header[:]); err != nil {
		return err
	}

	size := e.info.Size
	if e.body == nil {
		if size != 0 {
			return fmt.Errorf("%w: no body for %d bytes", ErrSizeMismatch, size)
		}
		return nil
	}

	n, err := ioutil.CopyWithContext(ctx, w, io.LimitReader(e.body, size), buf)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrSizeMismatch, n, size)
	}
	if err := ioutil.EnsureEOF(e.body, ErrSizeMismatch); err != nil {
		return err
	}

	_, err = w.Write(zero[:ustar.Padding(size)])
	return err
}
