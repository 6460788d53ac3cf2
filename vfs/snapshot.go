package vfs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vfsim/vfsim/identity"
	"github.com/vfsim/vfsim/internal/util"
	"github.com/vfsim/vfsim/perm"
)

// SnapshotVersion is the current snapshot wire format version.
const SnapshotVersion = 1

// Snapshot is a serializable capture of the whole tree plus the current
// working directory path. Encoding, encryption and storage are a
// collaborator's concern (see the persist package); the core only
// guarantees that a snapshot round-trips to an equivalent tree.
type Snapshot struct {
	Version     int       `json:"version" yaml:"version"`
	TakenAt     time.Time `json:"taken_at" yaml:"taken_at"`
	CurrentPath string    `json:"current_path" yaml:"current_path"`
	Root        *SnapNode `json:"root" yaml:"root"`
}

// SnapNode is the serialized form of one node.
type SnapNode struct {
	Kind     string      `json:"kind" yaml:"kind"`
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Owner    string      `json:"owner" yaml:"owner"`
	Group    string      `json:"group" yaml:"group"`
	Mode     string      `json:"mode" yaml:"mode"` // nine-character rwx triple
	Content  string      `json:"content,omitempty" yaml:"content,omitempty"`
	Target   string      `json:"target,omitempty" yaml:"target,omitempty"`
	Children []*SnapNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// Snapshot captures the current tree. It is a pure read; no timestamps are
// bumped.
func (fs *FileSystem) Snapshot() *Snapshot {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return &Snapshot{
		Version:     SnapshotVersion,
		TakenAt:     time.Now(),
		CurrentPath: fs.cwd.FullPath(),
		Root:        snapNode(fs.root),
	}
}

func snapNode(n *Node) *SnapNode {
	sn := &SnapNode{
		Kind:  n.kind.String(),
		ID:    n.id.String(),
		Name:  n.name,
		Owner: n.acl.Owner,
		Group: n.acl.Group,
		Mode:  n.acl.Mode(),
	}
	switch n.kind {
	case KindFile:
		sn.Content = string(n.content)
	case KindSymlink:
		sn.Target = n.target
	case KindDirectory:
		for _, name := range n.childOrder {
			sn.Children = append(sn.Children, snapNode(n.children[name]))
		}
	}
	return sn
}

// Restore replaces the tree with the one described by snap. The whole
// replacement tree is built and validated before anything is swapped, so a
// malformed snapshot leaves the filesystem untouched. After the swap the
// previously current path is re-resolved against the new tree; if it no
// longer resolves to a directory the current directory falls back to root.
func (fs *FileSystem) Restore(snap *Snapshot) error {
	logger := util.GetLogger("vfs.Restore")
	if snap == nil || snap.Root == nil {
		return fmt.Errorf("empty snapshot")
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Root.Kind != KindDirectory.String() {
		return fmt.Errorf("snapshot root is %s, want directory", snap.Root.Kind)
	}

	root := newRoot()
	if err := restoreInto(root, snap.Root); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.root = root
	fs.res.root = root

	// Revalidate the saved working directory against the restored tree.
	restorer := identity.Identity{Username: "root", Groups: []string{identity.RootGroup}}
	cwd, err := fs.res.resolve(snap.CurrentPath, root, restorer, true)
	if err != nil || cwd.kind != KindDirectory {
		logger.Warn().Str("path", snap.CurrentPath).Msg("Saved working directory no longer resolves, falling back to root")
		cwd = root
	}
	fs.cwd = cwd
	logger.Info().Str("cwd", cwd.FullPath()).Time("taken_at", snap.TakenAt).Msg("State restored")
	return nil
}

// restoreInto fills dst (a directory node) from the snapshot node's
// ownership, mode and children. Timestamps are freshly stamped; the
// round-trip contract covers names, ownership, content and structure only.
func restoreInto(dst *Node, sn *SnapNode) error {
	dst.acl.Owner = sn.Owner
	dst.acl.Group = sn.Group
	if err := dst.acl.ParseMode(sn.Mode); err != nil {
		return err
	}
	if id, err := uuid.Parse(sn.ID); err == nil {
		dst.id = id
	}
	for _, child := range sn.Children {
		node, err := restoreNode(child)
		if err != nil {
			return err
		}
		dst.AddChild(node)
	}
	return nil
}

func restoreNode(sn *SnapNode) (*Node, error) {
	if err := ValidateName(sn.Name); err != nil {
		return nil, fmt.Errorf("node name %q: %w", sn.Name, err)
	}
	acl := perm.NewACL(sn.Owner, sn.Group)

	switch sn.Kind {
	case KindFile.String():
		n := newNode(KindFile, sn.Name, acl)
		n.content = []byte(sn.Content)
		return n, finishRestore(n, sn)
	case KindSymlink.String():
		n := newNode(KindSymlink, sn.Name, acl)
		n.target = sn.Target
		return n, finishRestore(n, sn)
	case KindDirectory.String():
		n := newNode(KindDirectory, sn.Name, acl)
		if err := finishRestore(n, sn); err != nil {
			return nil, err
		}
		for _, child := range sn.Children {
			node, err := restoreNode(child)
			if err != nil {
				return nil, err
			}
			n.AddChild(node)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", sn.Kind)
	}
}

func finishRestore(n *Node, sn *SnapNode) error {
	if err := n.acl.ParseMode(sn.Mode); err != nil {
		return fmt.Errorf("node %q: %w", sn.Name, err)
	}
	if id, err := uuid.Parse(sn.ID); err == nil {
		n.id = id
	}
	return nil
}
