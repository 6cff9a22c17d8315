package tarball

import (
	"cmp"
	"slices"
)

// Tree is an entry with its children, as returned by TreeView.
type Tree struct {
	Entry

	// Children is nil for entries that are not directories.
	Children []*Tree
}

// Walk calls fn for t and every descendant in depth-first order, passing
// the depth below t. It stops early if fn returns false.
func (t *Tree) Walk(fn func(node *Tree, depth int) bool) {
	t.walk(fn, 0)
}

func (t *Tree) walk(fn func(*Tree, int) bool, depth int) bool {
	if !fn(t, depth) {
		return false
	}
	for _, c := range t.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}

// buildTree nests entries under root. An entry whose parent directory is
// absent is attached to its closest present ancestor, or to root.
func buildTree(root Entry, entries []Entry) *Tree {
	top := &Tree{Entry: root, Children: []*Tree{}}

	dirs := make(map[string]*Tree, len(entries))
	nodes := make([]*Tree, len(entries))
	for i, e := range entries {
		n := &Tree{Entry: e}
		if e.IsDir() {
			n.Children = []*Tree{}
			dirs[e.RelativePath] = n
		}
		nodes[i] = n
	}

	for _, n := range nodes {
		parent := top
		for dir := parentPath(n.RelativePath); dir != ""; dir = parentPath(dir) {
			if d, ok := dirs[dir]; ok {
				parent = d
				break
			}
		}
		parent.Children = append(parent.Children, n)
	}

	top.Walk(func(n *Tree, _ int) bool {
		slices.SortStableFunc(n.Children, compareNodes)
		return true
	})
	return top
}

// compareNodes orders directories before other kinds, then by name.
func compareNodes(a, b *Tree) int {
	if a.IsDir() != b.IsDir() {
		if a.IsDir() {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Name, b.Name)
}
