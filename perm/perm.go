// Package perm implements the Unix-like permission model for the virtual
// filesystem: rwx bitsets and per-node access control lists evaluated in
// owner/group/other order.
package perm

import "fmt"

// Perm is a bitset of access rights for one class of principal.
type Perm uint8

const (
	Read Perm = 1 << iota
	Write
	Exec
)

// None is the empty permission set.
const None Perm = 0

// Has reports whether all bits in required are set.
func (p Perm) Has(required Perm) bool {
	return p&required == required
}

// String renders the bitset in the familiar three-character rwx form.
func (p Perm) String() string {
	b := []byte{'-', '-', '-'}
	if p.Has(Read) {
		b[0] = 'r'
	}
	if p.Has(Write) {
		b[1] = 'w'
	}
	if p.Has(Exec) {
		b[2] = 'x'
	}
	return string(b)
}

// Parse converts a three-character rwx string (e.g. "rw-") into a Perm.
// Order is not enforced; any of 'r', 'w', 'x' sets the corresponding bit
// and '-' is ignored.
func Parse(s string) (Perm, error) {
	if len(s) != 3 {
		return None, fmt.Errorf("permission string must be 3 characters, got %q", s)
	}
	p := None
	for _, c := range s {
		switch c {
		case 'r':
			p |= Read
		case 'w':
			p |= Write
		case 'x':
			p |= Exec
		case '-':
		default:
			return None, fmt.Errorf("invalid permission character %q in %q", c, s)
		}
	}
	return p, nil
}
