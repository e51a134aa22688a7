package guardkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPausable(t *testing.T) (*Pausable, *ACL, *EventRecorder) {
	t.Helper()

	registry := NewRegistry().
		Role("PauseManager").
		Role("UnpauseManager").
		Role("Operator")
	store := NewMemoryStore()
	recorder := NewEventRecorder()
	acl := NewACL(store, registry, recorder, "")

	_, err := acl.InitSuperAdmin(asCaller("deployer.app"), "super.app")
	require.NoError(t, err)
	_, err = acl.GrantRole(asCaller("super.app"), "PauseManager", "pauser.app")
	require.NoError(t, err)
	_, err = acl.GrantRole(asCaller("super.app"), "UnpauseManager", "unpauser.app")
	require.NoError(t, err)
	_, err = acl.GrantRole(asCaller("super.app"), "Operator", "operator.app")
	require.NoError(t, err)

	pausable := NewPausable(store, acl, recorder, "", []string{"PauseManager"}, []string{"UnpauseManager"})
	return pausable, acl, recorder
}

// TestPausablePauseUnpause tests the pause lifecycle and idempotence
func TestPausablePauseUnpause(t *testing.T) {
	pausable, _, recorder := newTestPausable(t)

	// Unauthorized callers cannot pause.
	_, err := pausable.PauseFeature(asCaller("mallory.app"), "transfer")
	assert.ErrorIs(t, err, ErrUnauthorized)

	recorder.Reset()
	changed, err := pausable.PauseFeature(asCaller("pauser.app"), "transfer")
	require.NoError(t, err)
	assert.True(t, changed)

	paused, err := pausable.IsPaused(context.Background(), "transfer")
	require.NoError(t, err)
	assert.True(t, paused)

	event, found := recorder.Last()
	require.True(t, found)
	assert.Equal(t, "pause", event.Event)
	assert.Equal(t, Paused{By: "pauser.app", Key: "transfer"}, event.Data)

	// Pausing an already-paused feature is a silent no-op.
	recorder.Reset()
	changed, err = pausable.PauseFeature(asCaller("pauser.app"), "transfer")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, recorder.Events())

	// Pause and unpause permissions are separate.
	_, err = pausable.UnpauseFeature(asCaller("pauser.app"), "transfer")
	assert.ErrorIs(t, err, ErrUnauthorized)

	changed, err = pausable.UnpauseFeature(asCaller("unpauser.app"), "transfer")
	require.NoError(t, err)
	assert.True(t, changed)

	paused, err = pausable.IsPaused(context.Background(), "transfer")
	require.NoError(t, err)
	assert.False(t, paused)

	// Unpausing an unpaused feature is a silent no-op too.
	recorder.Reset()
	changed, err = pausable.UnpauseFeature(asCaller("unpauser.app"), "transfer")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, recorder.Events())

	// Super-admins may pause and unpause regardless of roles.
	changed, err = pausable.PauseFeature(asCaller("super.app"), "transfer")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = pausable.UnpauseFeature(asCaller("super.app"), "transfer")
	require.NoError(t, err)
	assert.True(t, changed)
}

// TestPausablePauseAll tests the ALL switch semantics
func TestPausablePauseAll(t *testing.T) {
	pausable, _, _ := newTestPausable(t)
	ctx := context.Background()

	_, err := pausable.PauseFeature(asCaller("pauser.app"), "withdraw")
	require.NoError(t, err)
	_, err = pausable.PauseFeature(asCaller("pauser.app"), PauseAll)
	require.NoError(t, err)

	// ALL pauses every feature, including never-paused ones.
	paused, err := pausable.IsPaused(ctx, "transfer")
	require.NoError(t, err)
	assert.True(t, paused)

	all, err := pausable.AllPaused(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"withdraw", PauseAll}, all)

	// Unpausing ALL does not unpause individually paused features.
	_, err = pausable.UnpauseFeature(asCaller("unpauser.app"), PauseAll)
	require.NoError(t, err)

	paused, err = pausable.IsPaused(ctx, "transfer")
	require.NoError(t, err)
	assert.False(t, paused)

	paused, err = pausable.IsPaused(ctx, "withdraw")
	require.NoError(t, err)
	assert.True(t, paused)
}

// TestPausableIfNotPaused tests the guard without exemptions
func TestPausableIfNotPaused(t *testing.T) {
	pausable, _, _ := newTestPausable(t)

	// Unpaused features pass for everyone, even anonymous callers.
	assert.NoError(t, pausable.IfNotPaused(asCaller("anyone.app"), "transfer"))
	assert.NoError(t, pausable.IfNotPaused(context.Background(), "transfer"))

	_, err := pausable.PauseFeature(asCaller("pauser.app"), "transfer")
	require.NoError(t, err)

	err = pausable.IfNotPaused(asCaller("anyone.app"), "transfer")
	assert.ErrorIs(t, err, ErrPaused)

	// Pausing does not exempt the pauser.
	err = pausable.IfNotPaused(asCaller("pauser.app"), "transfer")
	assert.ErrorIs(t, err, ErrPaused)
}

// TestPausableExemptions tests that exemptions beat the pause check
func TestPausableExemptions(t *testing.T) {
	pausable, _, _ := newTestPausable(t)

	ownable := NewOwnable(NewMemoryStore(), nil, "", "contract.app")
	_, err := ownable.OwnerSet(asCaller("contract.app"), "owner.app")
	require.NoError(t, err)
	pausable.WithOwnable(ownable)

	_, err = pausable.PauseFeature(asCaller("pauser.app"), PauseAll)
	require.NoError(t, err)

	// Role exemption.
	assert.NoError(t, pausable.IfNotPaused(asCaller("operator.app"), "transfer",
		ExceptRoles("Operator")))
	assert.ErrorIs(t, pausable.IfNotPaused(asCaller("other.app"), "transfer",
		ExceptRoles("Operator")), ErrPaused)

	// Owner and self exemptions.
	assert.NoError(t, pausable.IfNotPaused(asCaller("owner.app"), "transfer",
		ExceptOwner()))
	assert.NoError(t, pausable.IfNotPaused(asCaller("contract.app"), "transfer",
		ExceptSelf()))

	// An exemption not asked for does not apply.
	assert.ErrorIs(t, pausable.IfNotPaused(asCaller("owner.app"), "transfer",
		ExceptSelf()), ErrPaused)

	// Super-admin is not implicitly exempt from pause guards.
	assert.ErrorIs(t, pausable.IfNotPaused(asCaller("super.app"), "transfer"), ErrPaused)
}

// TestPausableIfPaused tests the escape-hatch guard
func TestPausableIfPaused(t *testing.T) {
	pausable, _, _ := newTestPausable(t)

	err := pausable.IfPaused(asCaller("anyone.app"), "transfer")
	assert.ErrorIs(t, err, ErrNotPaused)

	_, err = pausable.PauseFeature(asCaller("pauser.app"), "transfer")
	require.NoError(t, err)

	assert.NoError(t, pausable.IfPaused(asCaller("anyone.app"), "transfer"))

	// ALL satisfies the guard for any feature.
	_, err = pausable.UnpauseFeature(asCaller("unpauser.app"), "transfer")
	require.NoError(t, err)
	_, err = pausable.PauseFeature(asCaller("pauser.app"), PauseAll)
	require.NoError(t, err)

	assert.NoError(t, pausable.IfPaused(asCaller("anyone.app"), "transfer"))
}

// TestPausableStorageCompaction tests that an empty pause set frees its slot
func TestPausableStorageCompaction(t *testing.T) {
	registry := NewRegistry().Role("PauseManager")
	store := NewMemoryStore()
	acl := NewACL(store, registry, nil, "")

	_, err := acl.InitSuperAdmin(asCaller("deployer.app"), "super.app")
	require.NoError(t, err)

	pausable := NewPausable(store, acl, nil, "", nil, nil)

	before := store.Len()
	_, err = pausable.PauseFeature(asCaller("super.app"), "transfer")
	require.NoError(t, err)
	assert.Equal(t, before+1, store.Len())

	_, err = pausable.UnpauseFeature(asCaller("super.app"), "transfer")
	require.NoError(t, err)
	assert.Equal(t, before, store.Len())
}
