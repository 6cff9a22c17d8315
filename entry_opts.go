package tarball

import (
	"io/fs"
	"time"
)

// entryConfig holds the metadata supplied when appending an entry.
type entryConfig struct {
	name     string
	kind     Kind
	kindSet  bool
	mode     fs.FileMode
	modeSet  bool
	modTime  time.Time
	uid      uint32
	gid      uint32
	owner    string
	group    string
	size     int64
	sizeSet  bool
	linkName string
}

// EntryOption configures an appended or replacement entry.
type EntryOption func(*entryConfig)

func newEntryConfig(opts []EntryOption) *entryConfig {
	cfg := &entryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// EntryWithName overrides the display name. It does not change the path.
func EntryWithName(name string) EntryOption {
	return func(cfg *entryConfig) {
		cfg.name = name
	}
}

// EntryWithKind sets the entry kind. The default is KindFile.
func EntryWithKind(k Kind) EntryOption {
	return func(cfg *entryConfig) {
		cfg.kind = k
		cfg.kindSet = true
	}
}

// EntryWithMode sets the permission bits. The default is 0o755 for
// directories and 0o666 otherwise.
func EntryWithMode(mode fs.FileMode) EntryOption {
	return func(cfg *entryConfig) {
		cfg.mode = mode
		cfg.modeSet = true
	}
}

// EntryWithModTime sets the modification time. The default is the file's
// own time for FromFile data and the current time otherwise.
func EntryWithModTime(t time.Time) EntryOption {
	return func(cfg *entryConfig) {
		cfg.modTime = t
	}
}

// EntryWithUID sets the owner user ID.
func EntryWithUID(uid uint32) EntryOption {
	return func(cfg *entryConfig) {
		cfg.uid = uid
	}
}

// EntryWithGID sets the owner group ID.
func EntryWithGID(gid uint32) EntryOption {
	return func(cfg *entryConfig) {
		cfg.gid = gid
	}
}

// EntryWithOwner sets the owner user name.
func EntryWithOwner(owner string) EntryOption {
	return func(cfg *entryConfig) {
		cfg.owner = owner
	}
}

// EntryWithGroup sets the owner group name.
func EntryWithGroup(group string) EntryOption {
	return func(cfg *entryConfig) {
		cfg.group = group
	}
}

// EntryWithSize declares the body size. It is required for FromReader data.
func EntryWithSize(n int64) EntryOption {
	return func(cfg *entryConfig) {
		cfg.size = n
		cfg.sizeSet = true
	}
}

// EntryWithLinkName sets the target of a link or symlink entry.
func EntryWithLinkName(target string) EntryOption {
	return func(cfg *entryConfig) {
		cfg.linkName = target
	}
}
