package vfs

import (
	"bytes"
	"path"
	"strings"

	"github.com/vfsim/vfsim/identity"
	"github.com/vfsim/vfsim/internal/util"
	"github.com/vfsim/vfsim/perm"
)

// SearchByName walks the tree from startPath in pre-order and returns the
// full paths of every node whose name matches the shell glob pattern
// ('*' and '?'). Directories are descended regardless of whether their own
// name matches, in each directory's insertion order. Symbolic links are
// never followed during the walk, so the traversal is bounded by the
// actual tree depth. Subdirectories the acting identity cannot read are
// skipped silently.
func (fs *FileSystem) SearchByName(pattern, startPath string) ([]string, error) {
	logger := util.GetLogger("vfs.SearchByName")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id := fs.ids.Current()
	matches, err := fs.searchLocked(startPath, id, func(n *Node) (bool, error) {
		return path.Match(pattern, n.name)
	})
	fs.record("search_by_name", startPath, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("pattern", pattern).Str("start", startPath).Msg("Search failed")
		return nil, opErr("search_by_name", startPath, err)
	}
	logger.Debug().Str("pattern", pattern).Str("start", startPath).Int("matches", len(matches)).Msg("Search by name")
	return matches, nil
}

// SearchByContent walks the tree like [FileSystem.SearchByName] and returns
// the full paths of every file whose content contains text as a substring.
// Surrounding double quotes on text are stripped before matching.
func (fs *FileSystem) SearchByContent(text, startPath string) ([]string, error) {
	logger := util.GetLogger("vfs.SearchByContent")
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	needle := []byte(text)

	id := fs.ids.Current()
	matches, err := fs.searchLocked(startPath, id, func(n *Node) (bool, error) {
		return n.kind == KindFile && bytes.Contains(n.content, needle), nil
	})
	fs.record("search_by_content", startPath, id, err)
	if err != nil {
		logger.Debug().Err(err).Str("start", startPath).Msg("Search failed")
		return nil, opErr("search_by_content", startPath, err)
	}
	logger.Debug().Str("start", startPath).Int("matches", len(matches)).Msg("Search by content")
	return matches, nil
}

// searchLocked resolves the starting directory and runs the pre-order
// traversal. The start directory itself must grant read permission; from
// there, unreadable subtrees are pruned rather than failing the search.
func (fs *FileSystem) searchLocked(startPath string, id identity.Identity, match func(*Node) (bool, error)) ([]string, error) {
	if startPath == "" {
		startPath = "."
	}
	start, err := fs.res.resolve(startPath, fs.cwd, id, true)
	if err != nil {
		return nil, err
	}
	if start.kind != KindDirectory {
		return nil, ErrNotADirectory
	}
	if !start.acl.Check(id, perm.Read) {
		return nil, ErrPermissionDenied
	}

	matches := []string{}
	var walk func(dir *Node) error
	walk = func(dir *Node) error {
		for _, name := range dir.childOrder {
			child := dir.children[name]
			ok, err := match(child)
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, child.FullPath())
			}
			if child.kind == KindDirectory && child.acl.Check(id, perm.Read) {
				if err := walk(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(start); err != nil {
		return nil, err
	}
	return matches, nil
}
