// Package vfs implements the in-memory filesystem core: the node tree,
// path resolution and the permission-checked operation surface.
package vfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vfsim/vfsim/perm"
)

// NodeKind discriminates the closed set of node variants.
type NodeKind uint8

const (
	KindFile NodeKind = iota
	KindDirectory
	KindSymlink
)

func (k NodeKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("NodeKind(%d)", k)
	}
}

// Node is a single entity in the tree: a file, directory or symbolic link,
// discriminated by kind. Only the fields belonging to the node's kind are
// populated. Nodes carry no locks of their own; all access is serialized by
// the owning [FileSystem]'s tree lock.
type Node struct {
	kind NodeKind
	id   uuid.UUID
	name string // empty only for the root directory
	acl  perm.ACL

	createdAt  time.Time
	modifiedAt time.Time
	accessedAt time.Time

	parent *Node // nil for root and detached nodes

	content    []byte           // KindFile
	children   map[string]*Node // KindDirectory
	childOrder []string         // KindDirectory, insertion order
	target     string           // KindSymlink, stored verbatim
}

// ValidateName rejects empty names and names containing '/' or NUL.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return ErrInvalidName
	}
	return nil
}

func newNode(kind NodeKind, name string, acl perm.ACL) *Node {
	now := time.Now()
	n := &Node{
		kind:       kind,
		id:         uuid.New(),
		name:       name,
		acl:        acl,
		createdAt:  now,
		modifiedAt: now,
		accessedAt: now,
	}
	if kind == KindDirectory {
		n.children = make(map[string]*Node)
	}
	return n
}

// NewFile creates a detached file node. The parent directory is responsible
// for linking it in via [Node.AddChild].
func NewFile(name, owner, group string, content []byte) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	n := newNode(KindFile, name, perm.NewACL(owner, group))
	n.content = append([]byte(nil), content...)
	return n, nil
}

// NewDirectory creates a detached, empty directory node.
func NewDirectory(name, owner, group string) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return newNode(KindDirectory, name, perm.NewACL(owner, group)), nil
}

// NewSymlink creates a detached symbolic link node. The target path is
// stored exactly as given and resolved lazily on each traversal.
func NewSymlink(name, owner, group, target string) (*Node, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	n := newNode(KindSymlink, name, perm.NewACL(owner, group))
	n.target = target
	return n, nil
}

// newRoot creates the root directory, owned by root:root. It is the only
// node allowed an empty name.
func newRoot() *Node {
	return newNode(KindDirectory, "", perm.NewACL("root", "root"))
}

func (n *Node) Kind() NodeKind { return n.kind }
func (n *Node) ID() uuid.UUID  { return n.id }
func (n *Node) Name() string   { return n.name }
func (n *Node) Owner() string  { return n.acl.Owner }
func (n *Node) Group() string  { return n.acl.Group }
func (n *Node) ACL() perm.ACL  { return n.acl }
func (n *Node) Parent() *Node  { return n.parent }

func (n *Node) CreatedAt() time.Time  { return n.createdAt }
func (n *Node) ModifiedAt() time.Time { return n.modifiedAt }
func (n *Node) AccessedAt() time.Time { return n.accessedAt }

// IsRoot reports whether n is the root directory. Detached nodes are not
// root; only root combines a nil parent with an empty name.
func (n *Node) IsRoot() bool {
	return n.parent == nil && n.name == ""
}

// FullPath walks parent references up to the root and joins the names with
// slashes. The root's path is exactly "/".
func (n *Node) FullPath() string {
	if n.parent == nil {
		return "/"
	}
	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(parts[i])
	}
	return b.String()
}

// Size is computed on demand, never cached: file size is the byte length of
// its content, directory size the recursive sum over children, symlink size
// the byte length of the target path.
func (n *Node) Size() int {
	switch n.kind {
	case KindFile:
		return len(n.content)
	case KindDirectory:
		total := 0
		for _, name := range n.childOrder {
			total += n.children[name].Size()
		}
		return total
	case KindSymlink:
		return len(n.target)
	}
	return 0
}

// Content returns a copy of the file's content and bumps the access time.
func (n *Node) Content() []byte {
	n.touchAccessed()
	return append([]byte(nil), n.content...)
}

// SetContent replaces the file's content and bumps the modification time.
func (n *Node) SetContent(content []byte) {
	n.content = append([]byte(nil), content...)
	n.touchModified()
}

// Target returns the symlink's stored target path and bumps the access
// time; reading the target counts as reading the link's content.
func (n *Node) Target() string {
	n.touchAccessed()
	return n.target
}

// TargetPath returns the stored target path without touching timestamps,
// for display surfaces that only describe the link.
func (n *Node) TargetPath() string { return n.target }

// SetTarget repoints the symlink and bumps the modification time.
func (n *Node) SetTarget(target string) {
	n.target = target
	n.touchModified()
}

// AddChild inserts child into the directory, overwriting any existing entry
// of the same name; collision policy belongs to the caller. The child's
// parent back-reference is set and the directory's modification time
// bumped. A displaced node is detached.
func (n *Node) AddChild(child *Node) {
	if n.kind != KindDirectory {
		return
	}
	if old, ok := n.children[child.name]; ok {
		old.parent = nil
	} else {
		n.childOrder = append(n.childOrder, child.name)
	}
	n.children[child.name] = child
	child.parent = n
	n.touchModified()
}

// RemoveChild deletes the named entry, detaching it from the tree, and
// reports whether it existed.
func (n *Node) RemoveChild(name string) bool {
	child, ok := n.children[name]
	if !ok {
		return false
	}
	delete(n.children, name)
	for i, cn := range n.childOrder {
		if cn == name {
			n.childOrder = append(n.childOrder[:i], n.childOrder[i+1:]...)
			break
		}
	}
	child.parent = nil
	n.touchModified()
	return true
}

// Child returns the named child. Permission checks are the caller's
// responsibility; the directory is a pure container.
func (n *Node) Child(name string) (*Node, bool) {
	n.touchAccessed()
	child, ok := n.children[name]
	return child, ok
}

// Children returns the directory's entries in insertion order and bumps the
// access time.
func (n *Node) Children() []*Node {
	n.touchAccessed()
	out := make([]*Node, 0, len(n.childOrder))
	for _, name := range n.childOrder {
		out = append(out, n.children[name])
	}
	return out
}

// NumChildren returns the entry count without touching timestamps.
func (n *Node) NumChildren() int { return len(n.children) }

func (n *Node) touchAccessed() {
	n.accessedAt = time.Now()
}

// touchModified bumps the modification time and, since modification implies
// access, the access time as well.
func (n *Node) touchModified() {
	n.modifiedAt = time.Now()
	n.touchAccessed()
}

// hasChild is a lookup that leaves timestamps alone, for check-then-act
// sequences that must not mutate anything before all checks pass.
func (n *Node) hasChild(name string) bool {
	_, ok := n.children[name]
	return ok
}

// releaseSubtree recursively detaches every node under n so the whole
// subtree is unreachable and collectable even if external references to
// individual nodes linger.
func releaseSubtree(n *Node) {
	if n.kind != KindDirectory {
		return
	}
	for _, name := range n.childOrder {
		child := n.children[name]
		child.parent = nil
		releaseSubtree(child)
	}
	n.children = make(map[string]*Node)
	n.childOrder = nil
}
