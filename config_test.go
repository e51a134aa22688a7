package guardkit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig tests the default storage layout
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultACLPrefix, cfg.ACLPrefix)
	assert.Equal(t, DefaultOwnerKey, cfg.OwnerKey)
	assert.Equal(t, DefaultPausedKey, cfg.PausedKey)
	assert.Equal(t, DefaultCodeKey, cfg.CodeKey)
	assert.Equal(t, DefaultStagingDurationKey, cfg.StagingDurationKey)
	assert.Equal(t, DefaultDurationUpdateKey, cfg.DurationUpdateKey)
	assert.Zero(t, cfg.StagingDuration)

	assert.NoError(t, cfg.Validate())
}

// TestConfigValidate tests key collision and emptiness checks
func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OwnerKey = cfg.PausedKey
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)

	cfg = DefaultConfig()
	cfg.CodeKey = cfg.ACLPrefix
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)

	cfg = DefaultConfig()
	cfg.ACLPrefix = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)

	cfg = DefaultConfig()
	cfg.PausedKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)

	cfg = DefaultConfig()
	cfg.StagingDuration = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrConfig)
}

// TestLoadConfig tests environment overrides
func TestLoadConfig(t *testing.T) {
	t.Setenv("GUARDKIT_ACL_PREFIX", "custom_acl")
	t.Setenv("GUARDKIT_STAGING_DURATION", "90m")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "custom_acl", cfg.ACLPrefix)
	assert.Equal(t, 90*time.Minute, cfg.StagingDuration)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultOwnerKey, cfg.OwnerKey)
}

// TestLoadConfigInvalid tests that bad environments are rejected
func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("GUARDKIT_OWNER_KEY", DefaultPausedKey)

	_, err := LoadConfig()
	assert.ErrorIs(t, err, ErrConfig)
}
