//go:build unix

package platform

import (
	"io/fs"
	"os/user"
	"strconv"
	"sync"
	"syscall"
)

// SupportsChmod reports whether permission bits can be restored on this host.
const SupportsChmod = true

// FileOwner extracts UID and GID from file info on Unix systems.
// Infos without a *syscall.Stat_t, such as those of in-memory
// filesystems, report zero.
func FileOwner(info fs.FileInfo) (uid, gid uint32) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return stat.Uid, stat.Gid
	}
	return 0, 0
}

var (
	users  sync.Map // uint32 -> string
	groups sync.Map // uint32 -> string
)

// OwnerNames resolves uid and gid to user and group names. Unknown IDs
// resolve to empty names. Results are cached for the process lifetime.
func OwnerNames(uid, gid uint32) (owner, group string) {
	return lookup(&users, uid, func(id string) (string, error) {
		u, err := user.LookupId(id)
		if err != nil {
			return "", err
		}
		return u.Username, nil
	}), lookup(&groups, gid, func(id string) (string, error) {
		g, err := user.LookupGroupId(id)
		if err != nil {
			return "", err
		}
		return g.Name, nil
	})
}

func lookup(cache *sync.Map, id uint32, resolve func(string) (string, error)) string {
	if v, ok := cache.Load(id); ok {
		return v.(string) //nolint:forcetypeassert // cache only stores strings
	}
	name, err := resolve(strconv.FormatUint(uint64(id), 10))
	if err != nil {
		name = ""
	}
	cache.Store(id, name)
	return name
}
