package vfs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfsim/vfsim/config"
)

func buildSnapshotFixture(t *testing.T) (*FileSystem, *testProvider) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.OtherPerm = "r-x"
	p := &testProvider{id: rootID}
	fs := New(cfg, p)

	_, err := fs.CreateDirectory("/home")
	require.NoError(t, err)
	_, err = fs.CreateDirectory("/home/alice")
	require.NoError(t, err)
	_, err = fs.CreateFile("/home/alice/note.txt", []byte("remember the milk"))
	require.NoError(t, err)
	_, err = fs.CreateSymlink("/home/shortcut", "/home/alice/note.txt")
	require.NoError(t, err)
	_, err = fs.CreateDirectory("/etc")
	require.NoError(t, err)
	require.NoError(t, fs.ChangeDirectory("/home/alice"))
	return fs, p
}

func TestSnapshot_RestoreRoundTrip(t *testing.T) {
	t.Parallel()
	fs, _ := buildSnapshotFixture(t)
	snap := fs.Snapshot()

	assert.Equal(t, SnapshotVersion, snap.Version)
	assert.Equal(t, "/home/alice", snap.CurrentPath)

	restored := New(nil, &testProvider{id: rootID})
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, "/home/alice", restored.CurrentPath())

	content, err := restored.ReadFile("/home/alice/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(content))

	link, err := restored.Stat("/home/shortcut")
	require.NoError(t, err)
	assert.Equal(t, KindSymlink, link.Kind())
	assert.Equal(t, "/home/alice/note.txt", link.TargetPath())

	// Ownership, mode and identifier survive the round trip.
	orig, err := fs.Stat("/home/alice/note.txt")
	require.NoError(t, err)
	file, err := restored.Stat("/home/alice/note.txt")
	require.NoError(t, err)
	assert.Equal(t, orig.Owner(), file.Owner())
	assert.Equal(t, orig.Group(), file.Group())
	assert.Equal(t, orig.ACL().Mode(), file.ACL().Mode())
	assert.Equal(t, orig.ID(), file.ID())

	// Sibling order is preserved.
	entries, err := restored.ListDirectory("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "home", entries[0].Name())
	assert.Equal(t, "etc", entries[1].Name())
}

func TestSnapshot_SurvivesJSONEncoding(t *testing.T) {
	t.Parallel()
	fs, _ := buildSnapshotFixture(t)

	raw, err := json.Marshal(fs.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored := New(nil, &testProvider{id: rootID})
	require.NoError(t, restored.Restore(&snap))

	content, err := restored.ReadFile("/home/alice/note.txt")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(content))
}

func TestSnapshot_IsPureRead(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)

	file, err := fs.CreateFile("/f.txt", []byte("x"))
	require.NoError(t, err)
	before := file.AccessedAt()

	fs.Snapshot()
	assert.Equal(t, before, file.AccessedAt())
}

func TestRestore_CwdFallsBackToRoot(t *testing.T) {
	t.Parallel()
	fs, _ := buildSnapshotFixture(t)
	snap := fs.Snapshot()
	snap.CurrentPath = "/gone"

	restored := New(nil, &testProvider{id: rootID})
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, "/", restored.CurrentPath())
}

func TestRestore_MalformedLeavesTreeUntouched(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	_, err := fs.CreateFile("/keep.txt", []byte("still here"))
	require.NoError(t, err)

	bad := fs.Snapshot()
	bad.Root.Children[0].Name = "has/slash"
	assert.Error(t, fs.Restore(bad))

	content, err := fs.ReadFile("/keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "still here", string(content))
}

func TestRestore_Validation(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)

	assert.Error(t, fs.Restore(nil))
	assert.Error(t, fs.Restore(&Snapshot{Version: SnapshotVersion}))

	snap := fs.Snapshot()
	snap.Version = 99
	assert.Error(t, fs.Restore(snap))

	snap = fs.Snapshot()
	snap.Root.Kind = KindFile.String()
	assert.Error(t, fs.Restore(snap))

	snap = fs.Snapshot()
	snap.Root.Children = []*SnapNode{{Kind: "socket", Name: "s"}}
	assert.Error(t, fs.Restore(snap))

	snap = fs.Snapshot()
	snap.Root.Mode = "not-a-mode"
	assert.Error(t, fs.Restore(snap))
}
