//go:build !unix

package platform

import "io/fs"

// FileOwner returns zero UID/GID on non-Unix systems.
func FileOwner(info fs.FileInfo) (uid, gid uint32) {
	return 0, 0
}

// OwnerNames returns empty names on non-Unix systems.
func OwnerNames(uid, gid uint32) (owner, group string) {
	return "", ""
}

// SupportsChmod reports whether permission bits can be restored on this host.
const SupportsChmod = false
