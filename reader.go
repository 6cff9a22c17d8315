package tarball

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/tarball/internal/ustar"
)

// Reader parses an uncompressed archive incrementally.
//
// Next advances to the following entry and Read returns the body of the
// current one. The stream may end after the zero-block trailer, or cleanly
// at a block boundary with no trailer at all. Anything else that ends the
// stream early yields ErrCorrupted.
type Reader struct {
	r      io.Reader
	header [ustar.BlockSize]byte
	remain int64 // unread body bytes of the current entry
	pad    int64 // padding after the current body
	err    error // sticky
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next skips the rest of the current entry and decodes the next header.
// It returns io.EOF at the end of the archive.
func (r *Reader) Next() (Entry, error) {
	if r.err != nil {
		return Entry{}, r.err
	}
	if err := r.skip(); err != nil {
		r.err = err
		return Entry{}, err
	}

	n, err := io.ReadFull(r.r, r.header[:])
	switch {
	case errors.Is(err, io.EOF):
		r.err = io.EOF
		return Entry{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.err = fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupted, n)
		return Entry{}, r.err
	case err != nil:
		r.err = err
		return Entry{}, err
	}

	h, ok, err := ustar.Parse(r.header[:])
	if err != nil {
		r.err = err
		return Entry{}, err
	}
	if !ok {
		r.err = io.EOF
		return Entry{}, io.EOF
	}

	e, err := entryFromHeader(&h)
	if err != nil {
		r.err = err
		return Entry{}, err
	}
	r.remain = e.Size
	r.pad = ustar.Padding(e.Size)
	return e, nil
}

// Read reads from the body of the current entry.
// It returns io.EOF at the end of the body.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil && !errors.Is(r.err, io.EOF) {
		return 0, r.err
	}
	if r.remain <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remain {
		p = p[:r.remain]
	}
	n, err := r.r.Read(p)
	r.remain -= int64(n)
	if errors.Is(err, io.EOF) && r.remain > 0 {
		err = fmt.Errorf("%w: truncated body", ErrCorrupted)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = err
		return n, err
	}
	return n, nil
}

// rawHeader returns the header block of the current entry.
func (r *Reader) rawHeader() [ustar.BlockSize]byte {
	return r.header
}

// skip discards the unread body and the padding of the current entry.
func (r *Reader) skip() error {
	if r.remain > 0 {
		n, err := io.CopyN(io.Discard, r.r, r.remain)
		r.remain -= n
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: truncated body", ErrCorrupted)
		}
		if err != nil {
			return err
		}
	}
	if r.pad > 0 {
		n, err := io.CopyN(io.Discard, r.r, r.pad)
		r.pad = 0
		if errors.Is(err, io.EOF) {
			// A stream may stop right after the last body, but not inside
			// its padding.
			if n == 0 {
				return io.EOF
			}
			return fmt.Errorf("%w: truncated padding", ErrCorrupted)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
