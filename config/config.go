package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vfsim/vfsim/internal/util"
)

// Config contains runtime configuration values for the filesystem simulator.
type Config struct {
	MaxSymlinkHops int    // Maximum symlink indirections per resolution (Default 40)
	StatePath      string // Path for encrypted state snapshots (Default "vfsim.state")
	KeyPath        string // Path for the snapshot encryption key (Default ".vfsim.key")
	LogLevel       util.LogLevel

	// Permissions stamped onto newly created nodes, in rwx form.
	OwnerPerm string // Default "rw-"
	GroupPerm string // Default "r--"
	OtherPerm string // Default "r--"
}

// ConfigOverride uses pointer fields to distinguish between unset and zero
// values when loading partial configuration. See [Config] for field
// descriptions.
type ConfigOverride struct {
	MaxSymlinkHops *int           `yaml:"max_symlink_hops,omitempty" json:"max_symlink_hops,omitempty"`
	StatePath      *string        `yaml:"state_path,omitempty" json:"state_path,omitempty"`
	KeyPath        *string        `yaml:"key_path,omitempty" json:"key_path,omitempty"`
	LogLevel       *util.LogLevel `yaml:"log_level,omitempty" json:"log_level,omitempty"`
	OwnerPerm      *string        `yaml:"owner_perm,omitempty" json:"owner_perm,omitempty"`
	GroupPerm      *string        `yaml:"group_perm,omitempty" json:"group_perm,omitempty"`
	OtherPerm      *string        `yaml:"other_perm,omitempty" json:"other_perm,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MaxSymlinkHops: DefaultMaxSymlinkHops,
		StatePath:      DefaultStatePath,
		KeyPath:        DefaultKeyPath,
		LogLevel:       DefaultLogLevel,
		OwnerPerm:      DefaultOwnerPerm,
		GroupPerm:      DefaultGroupPerm,
		OtherPerm:      DefaultOtherPerm,
	}
}

// NewConfig creates a Config from defaults with override applied.
// A nil override yields the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.MaxSymlinkHops != nil {
		c.MaxSymlinkHops = *override.MaxSymlinkHops
	}
	if override.StatePath != nil {
		c.StatePath = *override.StatePath
	}
	if override.KeyPath != nil {
		c.KeyPath = *override.KeyPath
	}
	if override.LogLevel != nil {
		c.LogLevel = *override.LogLevel
	}
	if override.OwnerPerm != nil {
		c.OwnerPerm = *override.OwnerPerm
	}
	if override.GroupPerm != nil {
		c.GroupPerm = *override.GroupPerm
	}
	if override.OtherPerm != nil {
		c.OtherPerm = *override.OtherPerm
	}
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
