package tarball

import (
	"log/slog"
	"runtime"

	"github.com/go-git/go-billy/v5"
)

// untarConfig holds configuration for Untar and UntarReader.
type untarConfig struct {
	fs             billy.Filesystem
	compression    Compression
	compressionSet bool
	logger         *slog.Logger
	progress       ProgressFunc
	totalSize      uint64
	workers        int
}

// UntarOption configures Untar and UntarReader.
type UntarOption func(*untarConfig)

func newUntarConfig(opts []UntarOption) *untarConfig {
	cfg := &untarConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}
	return cfg
}

// UntarWithFilesystem reads the archive from, and extracts into, fs instead
// of the host filesystem.
func UntarWithFilesystem(fs billy.Filesystem) UntarOption {
	return func(cfg *untarConfig) {
		cfg.fs = fs
	}
}

// UntarWithCompression sets the codec wrapping the archive. Without this
// option the codec is detected from the first bytes of the stream.
func UntarWithCompression(c Compression) UntarOption {
	return func(cfg *untarConfig) {
		cfg.compression = c
		cfg.compressionSet = true
	}
}

// UntarWithGzip decompresses the archive with gzip.
func UntarWithGzip() UntarOption {
	return UntarWithCompression(CompressionGzip)
}

// UntarWithLogger sets a logger for debug output.
func UntarWithLogger(logger *slog.Logger) UntarOption {
	return func(cfg *untarConfig) {
		cfg.logger = logger
	}
}

// UntarWithProgress sets a callback receiving StageExtracting updates as
// archive bytes are consumed and StageRestoring updates as metadata is
// applied.
func UntarWithProgress(fn ProgressFunc) UntarOption {
	return func(cfg *untarConfig) {
		cfg.progress = fn
	}
}

// UntarWithTotalSize sets the archive size reported as BytesTotal. Untar
// defaults to the size of the source file.
func UntarWithTotalSize(n uint64) UntarOption {
	return func(cfg *untarConfig) {
		cfg.totalSize = n
	}
}

// UntarWithWorkers sets how many entries may be restored concurrently.
// Values <= 0 use GOMAXPROCS.
func UntarWithWorkers(n int) UntarOption {
	return func(cfg *untarConfig) {
		cfg.workers = n
	}
}
