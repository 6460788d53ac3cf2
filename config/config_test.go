package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vfsim/vfsim/internal/util"
)

func createOverride() *ConfigOverride {
	return &ConfigOverride{
		MaxSymlinkHops: util.Pointer(8),
		StatePath:      util.Pointer("test.state"),
		KeyPath:        util.Pointer("test.key"),
		LogLevel:       util.Pointer(util.DebugLevel),
		OwnerPerm:      util.Pointer("rwx"),
		GroupPerm:      util.Pointer("r-x"),
		OtherPerm:      util.Pointer("---"),
	}
}

// TestNewConfig_WithNilOverride tests that NewConfig creates a config with all
// default values when no override is provided.
func TestNewConfig_WithNilOverride(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(nil)

	require.NotNil(t, cfg)
	assert.Equal(t, NewDefaultConfig(), cfg, "must use default values when no config provided")
}

// TestNewConfig_WithAllOverride tests that NewConfig properly applies overrides
// while preserving defaults for unset fields.
func TestNewConfig_WithAllOverride(t *testing.T) {
	t.Parallel()

	override := createOverride()
	cfg := NewConfig(override)

	expCfg := &Config{
		MaxSymlinkHops: *override.MaxSymlinkHops,
		StatePath:      *override.StatePath,
		KeyPath:        *override.KeyPath,
		LogLevel:       *override.LogLevel,
		OwnerPerm:      *override.OwnerPerm,
		GroupPerm:      *override.GroupPerm,
		OtherPerm:      *override.OtherPerm,
	}
	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields")
}

func TestConfig_Merge_NilOverrideVals(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{}

	cfg := NewConfig(override)

	require.NotNil(t, cfg)
	assert.Equal(t, NewDefaultConfig(), cfg, "must use default values for nil override fields")
}

func TestConfig_Merge_PartialOverride(t *testing.T) {
	t.Parallel()

	override := &ConfigOverride{
		MaxSymlinkHops: util.Pointer(5),
		OtherPerm:      util.Pointer("---"),
	}
	cfg := NewConfig(override)

	expCfg := NewDefaultConfig()
	expCfg.MaxSymlinkHops = 5
	expCfg.OtherPerm = "---"

	require.NotNil(t, cfg)
	assert.Equal(t, expCfg, cfg, "must override all provided fields and leave rest default")
}

func TestLoadConfigOverrideFile_YAML(t *testing.T) {
	t.Parallel()

	override := createOverride()
	data, err := yaml.Marshal(override)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadConfigOverrideFile(path)
	require.NoError(t, err)
	assert.Equal(t, override, loaded)
}

func TestLoadConfigOverrideFile_JSON(t *testing.T) {
	t.Parallel()

	override := createOverride()
	data, err := json.Marshal(override)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadConfigOverrideFile(path)
	require.NoError(t, err)
	assert.Equal(t, override, loaded)
}

func TestLoadConfigOverrideFile_UnknownExtension(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_symlink_hops = 8"), 0o644))

	_, err := LoadConfigOverrideFile(path)
	assert.ErrorContains(t, err, "unknown config file extension")
}

func TestLoadConfigOverrideFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigOverrideFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestNewConfigFromFile(t *testing.T) {
	t.Parallel()

	data, err := yaml.Marshal(&ConfigOverride{MaxSymlinkHops: util.Pointer(3)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := NewConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxSymlinkHops)
	assert.Equal(t, DefaultStatePath, cfg.StatePath, "unset fields keep defaults")
}
