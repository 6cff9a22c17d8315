package tarball

// streamConfig holds configuration for Stream.
type streamConfig struct {
	compression Compression
	level       int
	progress    ProgressFunc
}

// StreamOption configures Stream.
type StreamOption func(*streamConfig)

// StreamWithCompression sets the codec wrapping the archive.
// The default is CompressionNone.
func StreamWithCompression(c Compression) StreamOption {
	return func(cfg *streamConfig) {
		cfg.compression = c
	}
}

// StreamWithGzip compresses the archive with gzip.
func StreamWithGzip() StreamOption {
	return StreamWithCompression(CompressionGzip)
}

// StreamWithLevel sets the codec level: 1-9 for gzip and 1-22 for zstd.
// Zero uses the codec default.
func StreamWithLevel(level int) StreamOption {
	return func(cfg *streamConfig) {
		cfg.level = level
	}
}

// StreamWithProgress sets a callback receiving StageArchiving updates after
// each entry is written. Byte counts are uncompressed.
func StreamWithProgress(fn ProgressFunc) StreamOption {
	return func(cfg *streamConfig) {
		cfg.progress = fn
	}
}
