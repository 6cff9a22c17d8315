package tarball

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/meigma/tarball/internal/ioutil"
)

// Load parses an archive from r into a new Tarball.
//
// Entry bodies are read into memory, so Load suits archives that fit in
// memory; use Untar to extract large archives. Parsing stops at the first
// zero block and ignores anything after it. Leading "./" is dropped from
// entry paths, and an entry for the archive root itself is skipped. An
// entry whose path repeats an earlier one replaces it in place. Truncated
// headers, bodies, or padding fail with ErrCorrupted.
func Load(ctx context.Context, r io.Reader, opts ...LoadOption) (*Tarball, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dr, release, err := decompress(ioutil.NewContextReader(ctx, r), cfg.compression, !cfg.compressionSet)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	defer release()

	t := New()
	t.logger = cfg.logger
	tr := NewReader(dr)
	for {
		info, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}

		if info.RelativePath == "." {
			t.log().Debug("entry skipped", "path", info.RelativePath, "reason", "archive root")
			continue
		}

		e := &entry{info: info, header: tr.rawHeader()}
		if info.Size > 0 || info.Kind.hasBody() {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, tr); err != nil {
				return nil, fmt.Errorf("load %s: %w", info.RelativePath, err)
			}
			e.body = bytes.NewReader(buf.Bytes())
		}
		t.put(e)
		t.log().Debug("entry loaded", "path", info.RelativePath, "kind", info.Kind.String(), "size", info.Size)
	}
	return t, nil
}

// LoadFile loads the archive stored at src.
func LoadFile(ctx context.Context, src string, opts ...LoadOption) (*Tarball, error) {
	cfg := loadConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var f io.ReadCloser
	var err error
	if cfg.fs != nil {
		f, err = cfg.fs.Open(src)
	} else {
		f, err = os.Open(src)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(ctx, f, opts...)
}
