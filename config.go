package guardkit

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config collects the storage keys and tunables of a contract instance.
// All fields have working defaults; load overrides from the environment
// with LoadConfig or set them directly.
type Config struct {
	// ACLPrefix namespaces the permission state.
	ACLPrefix string `envconfig:"ACL_PREFIX"`
	// OwnerKey is the storage slot of the owner account.
	OwnerKey string `envconfig:"OWNER_KEY"`
	// PausedKey is the storage slot of the paused feature set.
	PausedKey string `envconfig:"PAUSED_KEY"`
	// CodeKey is the storage slot of staged code.
	CodeKey string `envconfig:"CODE_KEY"`
	// StagingDurationKey is the storage slot of the active staging
	// duration.
	StagingDurationKey string `envconfig:"STAGING_DURATION_KEY"`
	// DurationUpdateKey is the storage slot of a pending staging-duration
	// update.
	DurationUpdateKey string `envconfig:"DURATION_UPDATE_KEY"`
	// StagingDuration is the delay between staging and deploying code,
	// in effect until a persisted update overrides it.
	StagingDuration time.Duration `envconfig:"STAGING_DURATION"`

	// RedisURL selects the Redis backend for NewRedisStoreFromConfig.
	RedisURL string `envconfig:"REDIS_URL"`
	// DatabaseURL selects the Postgres backend for NewBunStoreFromConfig.
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// DefaultConfig returns a Config with the default storage layout and a
// zero staging duration (staged code is deployable immediately).
func DefaultConfig() Config {
	return Config{
		ACLPrefix:          DefaultACLPrefix,
		OwnerKey:           DefaultOwnerKey,
		PausedKey:          DefaultPausedKey,
		CodeKey:            DefaultCodeKey,
		StagingDurationKey: DefaultStagingDurationKey,
		DurationUpdateKey:  DefaultDurationUpdateKey,
	}
}

// LoadConfig builds a Config from the defaults overridden by GUARDKIT_*
// environment variables (GUARDKIT_ACL_PREFIX, GUARDKIT_STAGING_DURATION,
// ...).
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("guardkit", &cfg); err != nil {
		return Config{}, NewError(ErrConfig, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configured storage keys are non-empty and do
// not collide. Components share one store, so overlapping keys would
// silently corrupt each other's state.
func (c Config) Validate() error {
	keys := map[string]string{
		"owner key":            c.OwnerKey,
		"paused key":           c.PausedKey,
		"code key":             c.CodeKey,
		"staging duration key": c.StagingDurationKey,
		"duration update key":  c.DurationUpdateKey,
	}

	seen := make(map[string]string, len(keys)+1)
	if c.ACLPrefix == "" {
		return NewError(ErrConfig, "acl prefix must not be empty")
	}
	seen[c.ACLPrefix] = "acl prefix"

	for name, key := range keys {
		if key == "" {
			return NewError(ErrConfig, name+" must not be empty")
		}
		if other, dup := seen[key]; dup {
			return NewError(ErrConfig, name+" collides with "+other+": "+key)
		}
		seen[key] = name
	}

	if c.StagingDuration < 0 {
		return NewError(ErrConfig, "staging duration must not be negative")
	}
	return nil
}
