package tarball

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"
)

// tarConfig holds configuration for Tar and TarFile.
type tarConfig struct {
	fs        billy.Filesystem
	logger    *slog.Logger
	progress  ProgressFunc
	noOwners  bool
	streamOps []StreamOption
}

// TarOption configures Tar and TarFile.
type TarOption func(*tarConfig)

// TarWithFilesystem reads the source tree, and writes TarFile output, in
// fs instead of the host filesystem.
func TarWithFilesystem(fs billy.Filesystem) TarOption {
	return func(cfg *tarConfig) {
		cfg.fs = fs
	}
}

// TarWithLogger sets a logger for debug output.
func TarWithLogger(logger *slog.Logger) TarOption {
	return func(cfg *tarConfig) {
		cfg.logger = logger
	}
}

// TarWithProgress sets a callback receiving StageEnumerating updates while
// the tree is walked, and StageArchiving updates from TarFile.
func TarWithProgress(fn ProgressFunc) TarOption {
	return func(cfg *tarConfig) {
		cfg.progress = fn
	}
}

// TarWithoutOwnerNames skips resolving user and group names on the host.
// IDs are still recorded.
func TarWithoutOwnerNames() TarOption {
	return func(cfg *tarConfig) {
		cfg.noOwners = true
	}
}

// TarWithCompression sets the codec used by TarFile.
func TarWithCompression(c Compression) TarOption {
	return func(cfg *tarConfig) {
		cfg.streamOps = append(cfg.streamOps, StreamWithCompression(c))
	}
}

// TarWithGzip compresses TarFile output with gzip.
func TarWithGzip() TarOption {
	return TarWithCompression(CompressionGzip)
}

// TarWithLevel sets the codec level used by TarFile.
func TarWithLevel(level int) TarOption {
	return func(cfg *tarConfig) {
		cfg.streamOps = append(cfg.streamOps, StreamWithLevel(level))
	}
}
