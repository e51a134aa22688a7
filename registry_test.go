package guardkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistryRole tests fluent role definition
func TestRegistryRole(t *testing.T) {
	registry := NewRegistry().
		Role("PauseManager").
		Role("Upgrader")

	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, []string{"PauseManager", "Upgrader"}, registry.Names())

	i, ok := registry.Index("PauseManager")
	assert.True(t, ok)
	assert.Equal(t, 0, i)

	i, ok = registry.Index("Upgrader")
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = registry.Index("Unknown")
	assert.False(t, ok)
}

// TestRegistryRolePanics tests startup-time misconfigurations
func TestRegistryRolePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().Role("")
	})

	assert.Panics(t, func() {
		NewRegistry().Role("Minter").Role("Minter")
	})

	assert.Panics(t, func() {
		registry := NewRegistry()
		for i := 0; i < MaxRoles+1; i++ {
			registry.Role(string(rune('A' + i)))
		}
	})
}

// TestRegistryValidateRoles tests role name validation
func TestRegistryValidateRoles(t *testing.T) {
	registry := NewRegistry().Role("Minter")

	assert.NoError(t, registry.ValidateRole("Minter"))
	assert.ErrorIs(t, registry.ValidateRole("Burner"), ErrInvalidRole)

	assert.NoError(t, registry.ValidateRoles([]string{"Minter"}))
	assert.NoError(t, registry.ValidateRoles(nil))
	assert.ErrorIs(t, registry.ValidateRoles([]string{"Minter", "Burner"}), ErrInvalidRole)
}

// TestRegistryFlagLayout tests the permission bit layout
func TestRegistryFlagLayout(t *testing.T) {
	registry := NewRegistry().
		Role("RoleA").
		Role("RoleB")

	// Super-admin owns bit 0; role i owns bits 2i+1 (grantee) and 2i+2
	// (admin).
	assert.Equal(t, permissionFlag(1), superAdminFlag)

	flag, err := registry.granteeFlag("RoleA")
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(1<<1), flag)

	flag, err = registry.adminFlag("RoleA")
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(1<<2), flag)

	flag, err = registry.granteeFlag("RoleB")
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(1<<3), flag)

	flag, err = registry.adminFlag("RoleB")
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(1<<4), flag)

	// The grantee bit shifted left by one is the admin bit.
	grantee, _ := registry.granteeFlag("RoleB")
	admin, _ := registry.adminFlag("RoleB")
	assert.Equal(t, grantee<<1, admin)
}

// TestRegistryAnyGranteeFlags tests folding multiple roles into one mask
func TestRegistryAnyGranteeFlags(t *testing.T) {
	registry := NewRegistry().
		Role("RoleA").
		Role("RoleB")

	mask, err := registry.anyGranteeFlags([]string{"RoleA", "RoleB"})
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(1<<1|1<<3), mask)

	mask, err = registry.anyGranteeFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, permissionFlag(0), mask)

	_, err = registry.anyGranteeFlags([]string{"RoleA", "Unknown"})
	assert.ErrorIs(t, err, ErrInvalidRole)
}
