package vfs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudit_RecordsSuccessAndFailure(t *testing.T) {
	t.Parallel()
	rec := NewMemoryRecorder(0)
	p := &testProvider{id: rootID}
	fs := New(nil, p, WithRecorder(rec))

	_, err := fs.CreateFile("/f.txt", []byte("x"))
	require.NoError(t, err)
	_, err = fs.ReadFile("/missing")
	require.Error(t, err)

	events := rec.Events()
	require.Len(t, events, 2)

	assert.Equal(t, "create_file", events[0].Op)
	assert.Equal(t, "/f.txt", events[0].Path)
	assert.Equal(t, "root", events[0].User)
	assert.True(t, events[0].Success)
	assert.Empty(t, events[0].Detail)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.False(t, events[0].At.IsZero())

	assert.Equal(t, "read_file", events[1].Op)
	assert.Equal(t, "/missing", events[1].Path)
	assert.False(t, events[1].Success)
	assert.Contains(t, events[1].Detail, "no such file or directory")
}

func TestAudit_DeniedAttemptNamesActingUser(t *testing.T) {
	t.Parallel()
	rec := NewMemoryRecorder(0)
	p := &testProvider{id: rootID}
	fs := New(nil, p, WithRecorder(rec))

	_, err := fs.CreateFile("/f.txt", nil)
	require.NoError(t, err)

	p.id = aliceID
	require.Error(t, fs.WriteFile("/f.txt", []byte("x")))

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, "write_file", last.Op)
	assert.Equal(t, "alice", last.User)
	assert.False(t, last.Success)
}

func TestMemoryRecorder_DropsOldestBeyondMax(t *testing.T) {
	t.Parallel()
	rec := NewMemoryRecorder(3)
	for i := 0; i < 5; i++ {
		rec.Record(Event{Op: fmt.Sprintf("op-%d", i)})
	}

	events := rec.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "op-2", events[0].Op)
	assert.Equal(t, "op-4", events[2].Op)
}

func TestMemoryRecorder_EventsReturnsCopy(t *testing.T) {
	t.Parallel()
	rec := NewMemoryRecorder(0)
	rec.Record(Event{Op: "first"})

	events := rec.Events()
	events[0].Op = "mutated"
	assert.Equal(t, "first", rec.Events()[0].Op)
}

func TestMultiRecorder_FansOut(t *testing.T) {
	t.Parallel()
	a := NewMemoryRecorder(0)
	b := NewMemoryRecorder(0)
	multi := MultiRecorder(a, b)

	multi.Record(Event{Op: "ping"})
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, "ping", b.Events()[0].Op)
}
