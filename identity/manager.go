package identity

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// RootUID is the uid of the seeded root user.
const RootUID = 0

// Manager is the system's user and group database. Lookups are lock-free;
// mutations (adding, removing and switching users) are serialized under a
// single mutex. Group membership slices stored in the groups map are
// replaced wholesale on change, never mutated in place.
type Manager struct {
	mu      sync.Mutex
	users   *xsync.Map[string, Identity]
	uids    *xsync.Map[int, string]
	groups  *xsync.Map[string, []string] // group name -> member usernames
	current Identity                     // protected by mu
}

// NewManager seeds the database with the root user (uid 0, group root),
// ensures the default users group exists, and sets root as the current user.
func NewManager() *Manager {
	m := &Manager{
		users:  xsync.NewMap[string, Identity](),
		uids:   xsync.NewMap[int, string](),
		groups: xsync.NewMap[string, []string](),
	}
	m.groups.Store(RootGroup, nil)
	m.groups.Store(DefaultGroup, nil)

	root, err := m.AddUser("root", RootUID, RootGroup)
	if err != nil {
		// The empty database cannot collide with the root user.
		panic(err)
	}
	m.mu.Lock()
	m.current = root
	m.mu.Unlock()
	return m
}

// AddUser creates a new user. With no groups given the user joins the
// default users group. Duplicate usernames or uids are rejected.
func (m *Manager) AddUser(username string, uid int, groups ...string) (Identity, error) {
	if err := ValidateUsername(username); err != nil {
		return Identity{}, err
	}
	if len(groups) == 0 {
		groups = []string{DefaultGroup}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users.Load(username); exists {
		return Identity{}, fmt.Errorf("username %q already exists", username)
	}
	if taken, exists := m.uids.Load(uid); exists {
		return Identity{}, fmt.Errorf("uid %d already taken by %q", uid, taken)
	}

	id := Identity{Username: username, UID: uid, Groups: slices.Clone(groups)}
	m.users.Store(username, id)
	m.uids.Store(uid, username)
	for _, g := range id.Groups {
		members, _ := m.groups.Load(g)
		m.groups.Store(g, append(slices.Clone(members), username))
	}
	return id, nil
}

// RemoveUser deletes a user and detaches them from all groups. The root
// user cannot be removed. Removing the current user resets the current
// user to root.
func (m *Manager) RemoveUser(username string) bool {
	if username == "root" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, exists := m.users.Load(username)
	if !exists {
		return false
	}
	m.users.Delete(username)
	m.uids.Delete(id.UID)
	for _, g := range id.Groups {
		if members, ok := m.groups.Load(g); ok {
			members = slices.Clone(members)
			if i := slices.Index(members, username); i >= 0 {
				m.groups.Store(g, slices.Delete(members, i, i+1))
			}
		}
	}
	if m.current.Username == username {
		root, _ := m.users.Load("root")
		m.current = root
	}
	return true
}

// SwitchUser changes the current user. Only root may switch to a different
// user; anyone may "switch" to themselves.
func (m *Manager) SwitchUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	target, exists := m.users.Load(username)
	if !exists {
		return fmt.Errorf("no such user %q", username)
	}
	if m.current.Username != "root" && m.current.Username != username {
		return fmt.Errorf("only root can switch users")
	}
	m.current = target
	return nil
}

// Current returns the currently active identity.
func (m *Manager) Current() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Lookup returns a user by name.
func (m *Manager) Lookup(username string) (Identity, bool) {
	return m.users.Load(username)
}

// Users returns all users sorted by username.
func (m *Manager) Users() []Identity {
	var all []Identity
	m.users.Range(func(_ string, id Identity) bool {
		all = append(all, id)
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	return all
}

// GroupMembers returns the usernames belonging to group, sorted.
func (m *Manager) GroupMembers(group string) []string {
	members, _ := m.groups.Load(group)
	members = slices.Clone(members)
	sort.Strings(members)
	return members
}

// NextUID returns an unused uid, one past the highest assigned.
func (m *Manager) NextUID() int {
	next := RootUID + 1
	m.uids.Range(func(uid int, _ string) bool {
		if uid >= next {
			next = uid + 1
		}
		return true
	})
	return next
}
