package config

import "github.com/vfsim/vfsim/internal/util"

// Default configuration constants. See [Config] for field descriptions.
const (
	// DefaultMaxSymlinkHops bounds symbolic link indirection during path
	// resolution. Matches the Linux ELOOP limit.
	DefaultMaxSymlinkHops = 40

	// DefaultStatePath is where encrypted state snapshots are written.
	DefaultStatePath = "vfsim.state"

	// DefaultKeyPath is where the snapshot encryption key is kept.
	DefaultKeyPath = ".vfsim.key"

	// Permissions stamped onto newly created nodes, in rwx form.
	DefaultOwnerPerm = "rw-"
	DefaultGroupPerm = "r--"
	DefaultOtherPerm = "r--"
)

// DefaultLogLevel is the log verbosity used when none is configured.
const DefaultLogLevel = util.InfoLevel
