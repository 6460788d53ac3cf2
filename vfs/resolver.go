package vfs

import (
	"errors"
	"strings"

	"github.com/vfsim/vfsim/identity"
)

// resolver turns path strings into nodes against the live tree. It holds no
// state beyond the root pointer and the symlink hop budget; the caller's
// tree lock covers all access.
type resolver struct {
	root    *Node
	maxHops int
}

// resolve walks path starting from cwd (or the root for absolute paths).
// Symbolic links in intermediate components are always followed; follow
// controls whether a link in the final component is chased too. Every
// link indirection draws from a shared hop budget so chained and cyclic
// links terminate with ErrSymlinkLoop instead of unbounded recursion.
func (r *resolver) resolve(path string, cwd *Node, id identity.Identity, follow bool) (*Node, error) {
	hops := r.maxHops
	return r.walk(path, cwd, id, follow, &hops)
}

func (r *resolver) walk(path string, base *Node, id identity.Identity, follow bool, hops *int) (*Node, error) {
	cur := base
	if strings.HasPrefix(path, "/") {
		cur = r.root
		path = strings.TrimPrefix(path, "/")
	}
	if path == "" {
		return cur, nil
	}

	components := strings.Split(path, "/")
	for i, comp := range components {
		last := i == len(components)-1
		switch comp {
		case "", ".":
			continue
		case "..":
			// Root has no parent; ".." stays put.
			if cur.parent != nil {
				cur = cur.parent
			}
			continue
		}

		if cur.kind != KindDirectory {
			return nil, ErrNotADirectory
		}
		child, ok := cur.Child(comp)
		if !ok {
			return nil, ErrNotFound
		}

		if child.kind == KindSymlink && (follow || !last) {
			*hops--
			if *hops < 0 {
				return nil, ErrSymlinkLoop
			}
			// The link's stored target is resolved from its containing
			// directory as the relative base, against the current tree.
			resolved, err := r.walk(child.Target(), cur, id, true, hops)
			if err != nil {
				if errors.Is(err, ErrSymlinkLoop) {
					return nil, err
				}
				return nil, ErrBrokenLink
			}
			child = resolved
		}
		cur = child
	}
	return cur, nil
}

// splitParent splits a path into its parent directory path and leaf name,
// mirroring the usual dirname/basename split: "/a/b" -> ("/a", "b"),
// "/a" -> ("/", "a"), "b" -> ("", "b"). An empty parent path resolves to
// the current directory.
func splitParent(path string) (dir, leaf string) {
	i := strings.LastIndex(path, "/")
	switch {
	case i < 0:
		return "", path
	case i == 0:
		return "/", path[1:]
	default:
		return path[:i], path[i+1:]
	}
}
