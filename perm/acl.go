package perm

import (
	"fmt"

	"github.com/vfsim/vfsim/identity"
)

// ACL holds the ownership and per-class permissions of a single node.
type ACL struct {
	Owner     string
	Group     string
	OwnerPerm Perm
	GroupPerm Perm
	OtherPerm Perm
}

// NewACL returns an ACL with the default creation permissions:
// owner rw-, group r--, other r--.
func NewACL(owner, group string) ACL {
	return ACL{
		Owner:     owner,
		Group:     group,
		OwnerPerm: Read | Write,
		GroupPerm: Read,
		OtherPerm: Read,
	}
}

// Check reports whether id holds every bit of required on this ACL.
// Members of the root group bypass all checks. Otherwise exactly one class
// applies: owner if the username matches, group if id is a member of the
// ACL's group, other in all remaining cases.
func (a ACL) Check(id identity.Identity, required Perm) bool {
	if id.IsRoot() {
		return true
	}
	if id.Username == a.Owner {
		return a.OwnerPerm.Has(required)
	}
	if id.InGroup(a.Group) {
		return a.GroupPerm.Has(required)
	}
	return a.OtherPerm.Has(required)
}

// Mode renders the nine-character permission triple, e.g. "rw-r--r--".
func (a ACL) Mode() string {
	return a.OwnerPerm.String() + a.GroupPerm.String() + a.OtherPerm.String()
}

// String renders the ACL in ls -l style: "rw-r--r-- owner:group".
func (a ACL) String() string {
	return fmt.Sprintf("%s %s:%s", a.Mode(), a.Owner, a.Group)
}

// ParseMode parses a nine-character triple as produced by [ACL.Mode] and
// applies it onto the ACL.
func (a *ACL) ParseMode(mode string) error {
	if len(mode) != 9 {
		return fmt.Errorf("mode string must be 9 characters, got %q", mode)
	}
	owner, err := Parse(mode[0:3])
	if err != nil {
		return err
	}
	group, err := Parse(mode[3:6])
	if err != nil {
		return err
	}
	other, err := Parse(mode[6:9])
	if err != nil {
		return err
	}
	a.OwnerPerm, a.GroupPerm, a.OtherPerm = owner, group, other
	return nil
}
