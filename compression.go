package tarball

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
)

// Compression identifies the codec wrapping an archive stream.
type Compression uint8

// Supported compression codecs.
const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// String returns the string representation of the codec.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// MediaType returns the OCI layer media type of an archive using c.
func (c Compression) MediaType() string {
	switch c {
	case CompressionGzip:
		return v1.MediaTypeImageLayerGzip
	case CompressionZstd:
		return v1.MediaTypeImageLayerZstd
	default:
		return v1.MediaTypeImageLayer
	}
}

// Extension returns the conventional file extension of an archive using c.
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// ParseCompression parses a codec name as accepted on the command line.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none", "tar":
		return CompressionNone, nil
	case "gzip", "gz", "tgz":
		return CompressionGzip, nil
	case "zstd", "zst":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", s)
	}
}

// CompressionFromPath guesses the codec from a file name's extension.
func CompressionFromPath(name string) Compression {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		return CompressionGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".tzst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// DetectCompression identifies the codec from the first bytes of a stream.
func DetectCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(head, zstdMagic):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// newWriter wraps w with an encoder for c. Closing the result flushes the
// encoder but does not close w.
func (c Compression) newWriter(w io.Writer, level int) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		// pgzip compresses blocks in parallel; output is plain gzip.
		if level == 0 {
			level = pgzip.DefaultCompression
		}
		gw, err := pgzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("create gzip writer: %w", err)
		}
		return gw, nil
	case CompressionZstd:
		opts := []zstd.EOption{zstd.WithEncoderConcurrency(1)}
		if level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unknown compression %d", c)
	}
}

// newReader wraps r with a decoder for c. The release function frees
// decoder resources and must be called once reading is done.
func (c Compression) newReader(r io.Reader) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: gzip: %w", ErrCorrupted, err)
		}
		return gr, func() { _ = gr.Close() }, nil
	case CompressionZstd:
		zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		return zr, zr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown compression %d", c)
	}
}

// decompress wraps r with the decoder for c, or with the detected decoder
// when detect is set.
func decompress(r io.Reader, c Compression, detect bool) (io.Reader, func(), error) {
	if detect {
		br := bufio.NewReader(r)
		head, err := br.Peek(len(zstdMagic))
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, err
		}
		c = DetectCompression(head)
		r = br
	}
	return c.newReader(r)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
