// Package tarball reads and writes POSIX ustar archives.
//
// A Tarball is an ordered, in-memory collection of entries keyed by their
// relative path. Entry bodies are kept as readers and consumed once, when
// the archive is rendered with Stream. Load parses an archive back into a
// Tarball, and Tar and Untar move whole directory trees between a
// filesystem and an archive.
//
// Archives consist of one 512-byte header per entry, the entry body padded
// to the next 512-byte boundary, and two zero blocks marking the end.
// Output may optionally be compressed with gzip or zstd.
package tarball
