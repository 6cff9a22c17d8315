package tarball

import (
	"path"
	"slices"
	"strings"
)

// NormalizePath converts a user-provided path to the form used as an entry
// key: leading, trailing, and repeated slashes and "." elements are
// removed, and an empty result becomes ".".
//
//	"/etc/nginx/"  → "etc/nginx"
//	"etc//nginx"   → "etc/nginx"
//	"./a.txt"      → "a.txt"
//	"/"            → "."
//
// ".." elements are preserved; Append rejects them.
func NormalizePath(p string) string {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	parts = slices.DeleteFunc(parts, func(s string) bool { return s == "." })
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}

// parentPath returns the parent of a normalized path, or "" at the top level.
func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}
