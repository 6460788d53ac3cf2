// Package identity manages the users and groups that act on the virtual
// filesystem. Every filesystem operation resolves its acting identity from
// a [Manager], and every node is stamped with the creating identity's
// username and primary group.
package identity

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// RootGroup is the administrative group. Its members bypass all permission
// checks.
const RootGroup = "root"

// DefaultGroup is the group every user belongs to unless told otherwise.
const DefaultGroup = "users"

// Identity is an immutable snapshot of a user: who they are and which
// groups they belong to at the time it was taken.
type Identity struct {
	Username string
	UID      int
	Groups   []string
}

// InGroup reports whether the identity is a member of group.
func (id Identity) InGroup(group string) bool {
	return slices.Contains(id.Groups, group)
}

// IsRoot reports whether the identity is a member of the root group.
func (id Identity) IsRoot() bool {
	return id.InGroup(RootGroup)
}

// PrimaryGroup returns the group stamped onto nodes the identity creates:
// the lexically first of its groups, which keeps ownership deterministic.
func (id Identity) PrimaryGroup() string {
	if len(id.Groups) == 0 {
		return DefaultGroup
	}
	sorted := slices.Clone(id.Groups)
	sort.Strings(sorted)
	return sorted[0]
}

func (id Identity) String() string {
	groups := slices.Clone(id.Groups)
	sort.Strings(groups)
	return fmt.Sprintf("%s (uid: %d, groups: %s)", id.Username, id.UID, strings.Join(groups, ","))
}

// ValidateUsername rejects empty names and names containing '/' or NUL.
func ValidateUsername(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("invalid username %q: must be non-empty and contain no '/' or NUL", name)
	}
	return nil
}
