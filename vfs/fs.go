package vfs

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vfsim/vfsim/config"
	"github.com/vfsim/vfsim/identity"
	"github.com/vfsim/vfsim/internal/util"
	"github.com/vfsim/vfsim/perm"
)

// IdentityProvider supplies the acting identity for every operation.
type IdentityProvider interface {
	Current() identity.Identity
}

// FileSystem is the tree manager: the public, permission-checked operation
// surface over the node tree. All tree access is serialized under one
// coarse lock; mutating operations take it exclusively, read-only ones
// share it. There is no per-node locking.
type FileSystem struct {
	cfg *config.Config
	ids IdentityProvider
	rec Recorder

	defOwnerPerm perm.Perm
	defGroupPerm perm.Perm
	defOtherPerm perm.Perm

	mu   sync.RWMutex
	root *Node
	cwd  *Node
	res  *resolver
}

// Option configures a FileSystem at construction time.
type Option func(*FileSystem)

// WithRecorder attaches an audit recorder. It observes every operation
// attempt and never affects control flow.
func WithRecorder(r Recorder) Option {
	return func(fs *FileSystem) { fs.rec = r }
}

// New creates a filesystem with a fresh root directory owned by root:root
// and the current directory pointing at it. A nil cfg uses the defaults.
func New(cfg *config.Config, ids IdentityProvider, opts ...Option) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	root := newRoot()
	fs := &FileSystem{
		cfg:  cfg,
		ids:  ids,
		root: root,
		cwd:  root,
		res:  &resolver{root: root, maxHops: cfg.MaxSymlinkHops},
	}
	fs.defOwnerPerm = parsePermOr(cfg.OwnerPerm, perm.Read|perm.Write)
	fs.defGroupPerm = parsePermOr(cfg.GroupPerm, perm.Read)
	fs.defOtherPerm = parsePermOr(cfg.OtherPerm, perm.Read)
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func parsePermOr(s string, fallback perm.Perm) perm.Perm {
	p, err := perm.Parse(s)
	if err != nil {
		return fallback
	}
	return p
}

// newACL stamps the configured creation permissions for the given identity.
func (fs *FileSystem) newACL(id identity.Identity) perm.ACL {
	return perm.ACL{
		Owner:     id.Username,
		Group:     id.PrimaryGroup(),
		OwnerPerm: fs.defOwnerPerm,
		GroupPerm: fs.defGroupPerm,
		OtherPerm: fs.defOtherPerm,
	}
}

// Root returns the root directory.
func (fs *FileSystem) Root() *Node {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.root
}

// CurrentDirectory returns the current working directory node.
func (fs *FileSystem) CurrentDirectory() *Node {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cwd
}

// CurrentPath returns the absolute path of the current working directory.
func (fs *FileSystem) CurrentPath() string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.cwd.FullPath()
}

// record emits an audit event for one operation attempt.
func (fs *FileSystem) record(op, path string, id identity.Identity, err error) {
	if fs.rec == nil {
		return
	}
	ev := Event{
		ID:      uuid.New(),
		Op:      op,
		Path:    path,
		User:    id.Username,
		Success: err == nil,
		At:      time.Now(),
	}
	if err != nil {
		ev.Detail = err.Error()
	}
	fs.rec.Record(ev)
}

// CreateFile creates a new file at path with the given content, owned by
// the acting identity. The parent directory must exist, be a directory and
// grant write permission; the leaf name must be free.
func (fs *FileSystem) CreateFile(path string, content []byte) (*Node, error) {
	logger := util.GetLogger("vfs.CreateFile")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	node, err := fs.createLocked(path, id, func(name string) (*Node, error) {
		file, err := NewFile(name, id.Username, id.PrimaryGroup(), content)
		if err != nil {
			return nil, err
		}
		file.acl = fs.newACL(id)
		return file, nil
	})
	fs.record("create_file", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to create file")
		return nil, opErr("create_file", path, err)
	}
	logger.Debug().Str("path", path).Str("user", id.Username).Msg("Created file")
	return node, nil
}

// CreateDirectory creates a new, empty directory at path. A trailing slash
// is stripped before splitting. Collision and permission policy match
// [FileSystem.CreateFile].
func (fs *FileSystem) CreateDirectory(path string) (*Node, error) {
	logger := util.GetLogger("vfs.CreateDirectory")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	trimmed := path
	if len(trimmed) > 1 {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}

	id := fs.ids.Current()
	node, err := fs.createLocked(trimmed, id, func(name string) (*Node, error) {
		dir, err := NewDirectory(name, id.Username, id.PrimaryGroup())
		if err != nil {
			return nil, err
		}
		dir.acl = fs.newACL(id)
		return dir, nil
	})
	fs.record("create_directory", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to create directory")
		return nil, opErr("create_directory", path, err)
	}
	logger.Debug().Str("path", path).Str("user", id.Username).Msg("Created directory")
	return node, nil
}

// CreateSymlink creates a symbolic link at linkPath pointing at targetPath.
// The target is stored verbatim and never validated; dangling links are
// legal and only surface as ErrBrokenLink when followed.
func (fs *FileSystem) CreateSymlink(linkPath, targetPath string) (*Node, error) {
	logger := util.GetLogger("vfs.CreateSymlink")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	node, err := fs.createLocked(linkPath, id, func(name string) (*Node, error) {
		link, err := NewSymlink(name, id.Username, id.PrimaryGroup(), targetPath)
		if err != nil {
			return nil, err
		}
		link.acl = fs.newACL(id)
		return link, nil
	})
	fs.record("create_symlink", linkPath, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", linkPath).Str("target", targetPath).Msg("Failed to create symlink")
		return nil, opErr("create_symlink", linkPath, err)
	}
	logger.Debug().Str("path", linkPath).Str("target", targetPath).Str("user", id.Username).Msg("Created symlink")
	return node, nil
}

// createLocked is the shared check-then-act sequence for all create
// operations: validate the leaf name, resolve the parent, check write
// permission, check for collision, and only then construct and link the
// node. Nothing is mutated before every check has passed.
func (fs *FileSystem) createLocked(path string, id identity.Identity, build func(name string) (*Node, error)) (*Node, error) {
	dirPath, name := splitParent(path)
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	parent, err := fs.res.resolve(dirPath, fs.cwd, id, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrParentNotFound
		}
		return nil, err
	}
	if parent.kind != KindDirectory {
		return nil, ErrParentNotDirectory
	}
	if !parent.acl.Check(id, perm.Write) {
		return nil, ErrPermissionDenied
	}
	if parent.hasChild(name) {
		return nil, ErrAlreadyExists
	}

	node, err := build(name)
	if err != nil {
		return nil, err
	}
	parent.AddChild(node)
	return node, nil
}

// ReadFile returns the content of the file at path, following symlinks.
// Requires read permission on the target.
func (fs *FileSystem) ReadFile(path string) ([]byte, error) {
	logger := util.GetLogger("vfs.ReadFile")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	content, err := fs.readFileLocked(path, id)
	fs.record("read_file", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to read file")
		return nil, opErr("read_file", path, err)
	}
	return content, nil
}

func (fs *FileSystem) readFileLocked(path string, id identity.Identity) ([]byte, error) {
	node, err := fs.res.resolve(path, fs.cwd, id, true)
	if err != nil {
		return nil, err
	}
	if node.kind != KindFile {
		return nil, ErrNotAFile
	}
	if !node.acl.Check(id, perm.Read) {
		return nil, ErrPermissionDenied
	}
	return node.Content(), nil
}

// WriteFile replaces the content of the file at path, creating it (with
// [FileSystem.CreateFile] semantics) if it does not exist. An existing
// target must be a file and grant write permission.
func (fs *FileSystem) WriteFile(path string, content []byte) error {
	logger := util.GetLogger("vfs.WriteFile")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	err := fs.writeFileLocked(path, content, id)
	fs.record("write_file", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to write file")
		return opErr("write_file", path, err)
	}
	logger.Debug().Str("path", path).Int("bytes", len(content)).Str("user", id.Username).Msg("Wrote file")
	return nil
}

func (fs *FileSystem) writeFileLocked(path string, content []byte, id identity.Identity) error {
	node, err := fs.res.resolve(path, fs.cwd, id, true)
	if errors.Is(err, ErrNotFound) {
		_, err = fs.createLocked(path, id, func(name string) (*Node, error) {
			file, err := NewFile(name, id.Username, id.PrimaryGroup(), content)
			if err != nil {
				return nil, err
			}
			file.acl = fs.newACL(id)
			return file, nil
		})
		return err
	}
	if err != nil {
		return err
	}
	if node.kind != KindFile {
		return ErrNotAFile
	}
	if !node.acl.Check(id, perm.Write) {
		return ErrPermissionDenied
	}
	node.SetContent(content)
	return nil
}

// ListDirectory returns the entries of the directory at path in insertion
// order. Requires read permission on the directory. The default path is
// the current directory.
func (fs *FileSystem) ListDirectory(path string) ([]*Node, error) {
	logger := util.GetLogger("vfs.ListDirectory")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if path == "" {
		path = "."
	}
	id := fs.ids.Current()
	entries, err := fs.listLocked(path, id)
	fs.record("list_directory", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to list directory")
		return nil, opErr("list_directory", path, err)
	}
	return entries, nil
}

func (fs *FileSystem) listLocked(path string, id identity.Identity) ([]*Node, error) {
	node, err := fs.res.resolve(path, fs.cwd, id, true)
	if err != nil {
		return nil, err
	}
	if node.kind != KindDirectory {
		return nil, ErrNotADirectory
	}
	if !node.acl.Check(id, perm.Read) {
		return nil, ErrPermissionDenied
	}
	return node.Children(), nil
}

// ChangeDirectory moves the current working directory to path. Requires
// execute ("traverse into") permission on the target directory.
func (fs *FileSystem) ChangeDirectory(path string) error {
	logger := util.GetLogger("vfs.ChangeDirectory")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	err := fs.changeDirectoryLocked(path, id)
	fs.record("change_directory", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to change directory")
		return opErr("change_directory", path, err)
	}
	logger.Debug().Str("path", fs.cwd.FullPath()).Str("user", id.Username).Msg("Changed directory")
	return nil
}

func (fs *FileSystem) changeDirectoryLocked(path string, id identity.Identity) error {
	node, err := fs.res.resolve(path, fs.cwd, id, true)
	if err != nil {
		return err
	}
	if node.kind != KindDirectory {
		return ErrNotADirectory
	}
	if !node.acl.Check(id, perm.Exec) {
		return ErrPermissionDenied
	}
	fs.cwd = node
	return nil
}

// Delete removes the node at path, recursively releasing the subtree when
// it is a directory. The root cannot be deleted. Requires write permission
// on the parent directory. A trailing symlink is removed itself, not
// followed.
func (fs *FileSystem) Delete(path string) error {
	logger := util.GetLogger("vfs.Delete")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	err := fs.deleteLocked(path, id)
	fs.record("delete", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Str("user", id.Username).Msg("Failed to delete")
		return opErr("delete", path, err)
	}
	logger.Debug().Str("path", path).Str("user", id.Username).Msg("Deleted")
	return nil
}

func (fs *FileSystem) deleteLocked(path string, id identity.Identity) error {
	trimmed := path
	if len(trimmed) > 1 {
		trimmed = strings.TrimSuffix(trimmed, "/")
	}
	dirPath, name := splitParent(trimmed)
	if name == "" || name == "." || name == ".." {
		if trimmed == "/" {
			return ErrIsRoot
		}
		return ErrInvalidName
	}

	parent, err := fs.res.resolve(dirPath, fs.cwd, id, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrParentNotFound
		}
		return err
	}
	if parent.kind != KindDirectory {
		return ErrParentNotDirectory
	}
	child, ok := parent.children[name]
	if !ok {
		return ErrNotFound
	}
	if child.IsRoot() {
		return ErrIsRoot
	}
	if !parent.acl.Check(id, perm.Write) {
		return ErrPermissionDenied
	}

	// The current directory must stay live; if it sits inside the doomed
	// subtree it is moved to the deleted node's parent.
	if fs.cwd == child || isAncestor(child, fs.cwd) {
		fs.cwd = parent
	}
	parent.RemoveChild(name)
	releaseSubtree(child)
	return nil
}

// isAncestor reports whether anc lies on n's parent chain.
func isAncestor(anc, n *Node) bool {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// Stat returns the node at path without following a trailing symlink, so
// links can be inspected as themselves.
func (fs *FileSystem) Stat(path string) (*Node, error) {
	logger := util.GetLogger("vfs.Stat")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	node, err := fs.res.resolve(path, fs.cwd, id, false)
	fs.record("stat", path, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Failed to stat")
		return nil, opErr("stat", path, err)
	}
	return node, nil
}

// DiskUsage returns the recursive size in bytes of the node at path.
// Requires read permission on the node.
func (fs *FileSystem) DiskUsage(path string) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	node, err := fs.res.resolve(path, fs.cwd, id, true)
	if err == nil && !node.acl.Check(id, perm.Read) {
		err = ErrPermissionDenied
	}
	fs.record("disk_usage", path, id, err)
	if err != nil {
		return 0, opErr("disk_usage", path, err)
	}
	return node.Size(), nil
}
