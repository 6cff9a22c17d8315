package tarball

import (
	"log/slog"

	"github.com/go-git/go-billy/v5"
)

// loadConfig holds configuration for Load.
type loadConfig struct {
	compression    Compression
	compressionSet bool
	logger         *slog.Logger
	fs             billy.Filesystem
}

// LoadOption configures Load and LoadFile.
type LoadOption func(*loadConfig)

// LoadWithCompression sets the codec wrapping the archive. Without this
// option the codec is detected from the first bytes of the stream.
func LoadWithCompression(c Compression) LoadOption {
	return func(cfg *loadConfig) {
		cfg.compression = c
		cfg.compressionSet = true
	}
}

// LoadWithGzip decompresses the archive with gzip.
func LoadWithGzip() LoadOption {
	return LoadWithCompression(CompressionGzip)
}

// LoadWithLogger sets a logger for debug output.
func LoadWithLogger(logger *slog.Logger) LoadOption {
	return func(cfg *loadConfig) {
		cfg.logger = logger
	}
}

// LoadWithFilesystem makes LoadFile open its source in fs instead of the
// host filesystem.
func LoadWithFilesystem(fs billy.Filesystem) LoadOption {
	return func(cfg *loadConfig) {
		cfg.fs = fs
	}
}
