// Package tee splits a reader into two readers that advance independently.
//
// Bytes read by one branch are kept in a shared backlog until the other
// branch has read them too, so a branch that is never read holds the whole
// remaining stream in memory.
package tee

import (
	"io"
	"sync"
)

const minFill = 32 * 1024

// source is the state shared by the two branches.
type source struct {
	mu  sync.Mutex
	r   io.Reader
	err error

	// buf holds stream bytes [base, base+len(buf)).
	buf  []byte
	base int64
	pos  [2]int64
}

// branch is one independently advancing cursor over a source.
type branch struct {
	s  *source
	id int
}

// Split returns two readers that each yield every byte of r.
// Both readers are safe for use from different goroutines.
func Split(r io.Reader) (io.Reader, io.Reader) {
	s := &source{r: r}
	return &branch{s: s, id: 0}, &branch{s: s, id: 1}
}

// Read implements io.Reader.
func (b *branch) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos[b.id] == s.base+int64(len(s.buf)) {
		if s.err != nil {
			return 0, s.err
		}
		if err := s.fill(len(p)); err != nil && s.pos[b.id] == s.base+int64(len(s.buf)) {
			return 0, err
		}
	}

	n := copy(p, s.buf[s.pos[b.id]-s.base:])
	s.pos[b.id] += int64(n)
	s.trim()
	return n, nil
}

// fill reads the next chunk from the underlying reader into the backlog.
func (s *source) fill(hint int) error {
	chunk := make([]byte, max(hint, minFill))
	n, err := s.r.Read(chunk)
	s.buf = append(s.buf, chunk[:n]...)
	if err != nil {
		s.err = err
	}
	return err
}

// trim drops backlog bytes that both branches have consumed.
func (s *source) trim() {
	low := min(s.pos[0], s.pos[1])
	drop := low - s.base
	if drop <= 0 {
		return
	}
	if drop == int64(len(s.buf)) {
		s.buf = nil
	} else {
		s.buf = s.buf[drop:]
	}
	s.base = low
}
