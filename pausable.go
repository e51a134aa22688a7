package guardkit

import (
	"context"
)

const (
	pausableStandard = "Pausable"
	pausableVersion  = "1.0.0"
)

// DefaultPausedKey is the default storage slot of the paused feature set.
const DefaultPausedKey = "__PAUSED__"

// PauseAll is the reserved feature name pausing every pausable feature at
// once. Note that unpausing PauseAll does not unpause features that were
// paused individually.
const PauseAll = "ALL"

// Paused is emitted when a feature is paused.
type Paused struct {
	// Account that triggered the pause.
	By string `json:"by"`
	// Name of the feature that was paused.
	Key string `json:"key"`
}

// Unpaused is emitted when a feature is unpaused.
type Unpaused struct {
	By  string `json:"by"`
	Key string `json:"key"`
}

// Pausable implements an emergency stop mechanism: authorized accounts can
// pause named features, and guards block calls into paused features for
// non-exempt callers. Pausing is a circuit-breaker for non-privileged
// traffic, not an absolute lock.
//
// The whole pause set lives in a single storage slot, which is optimized
// for the expected case of few features paused at once; use PauseAll to
// stop everything.
type Pausable struct {
	store        Store
	acl          *ACL
	ownable      *Ownable
	emitter      Emitter
	key          string
	pauseRoles   []string
	unpauseRoles []string
}

// NewPausable creates a Pausable over the given store. PauseFeature and
// UnpauseFeature are gated through acl on pauseRoles and unpauseRoles
// respectively (super-admins always qualify). An empty key selects
// DefaultPausedKey.
func NewPausable(store Store, acl *ACL, emitter Emitter, key string, pauseRoles, unpauseRoles []string) *Pausable {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if key == "" {
		key = DefaultPausedKey
	}
	return &Pausable{
		store:        store,
		acl:          acl,
		emitter:      emitter,
		key:          key,
		pauseRoles:   pauseRoles,
		unpauseRoles: unpauseRoles,
	}
}

// WithOwnable wires an Ownable so guards can evaluate owner/self
// exemptions. Returns the Pausable for chaining.
func (p *Pausable) WithOwnable(o *Ownable) *Pausable {
	p.ownable = o
	return p
}

func (p *Pausable) pausedSet(ctx context.Context) ([]string, error) {
	var list []string
	if _, err := loadValue(ctx, p.store, p.key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (p *Pausable) savePausedSet(ctx context.Context, list []string) error {
	if len(list) == 0 {
		return deleteKey(ctx, p.store, p.key)
	}
	return saveValue(ctx, p.store, p.key, list)
}

// IsPaused returns whether feature is paused, either individually or via
// PauseAll. Pure query.
func (p *Pausable) IsPaused(ctx context.Context, feature string) (bool, error) {
	list, err := p.pausedSet(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range list {
		if f == feature || f == PauseAll {
			return true, nil
		}
	}
	return false, nil
}

// AllPaused returns every currently paused feature name. The slice is
// empty when nothing is paused.
func (p *Pausable) AllPaused(ctx context.Context) ([]string, error) {
	list, err := p.pausedSet(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// PauseFeature adds feature to the pause set. The caller must hold one of
// the configured pause roles or be a super-admin. The boolean reports
// whether the set changed; pausing an already-paused feature is a no-op
// and emits no event.
func (p *Pausable) PauseFeature(ctx context.Context, feature string) (bool, error) {
	if err := p.acl.RequireAnyRole(ctx, p.pauseRoles...); err != nil {
		return false, err
	}

	list, err := p.pausedSet(ctx)
	if err != nil {
		return false, err
	}
	list, changed := appendUnique(list, feature)
	if !changed {
		return false, nil
	}
	if err := p.savePausedSet(ctx, list); err != nil {
		return false, err
	}

	p.emitter.Emit(ctx, Event{
		Standard: pausableStandard,
		Version:  pausableVersion,
		Event:    "pause",
		Data:     Paused{By: Caller(ctx), Key: feature},
	})
	return true, nil
}

// UnpauseFeature removes feature from the pause set. The caller must hold
// one of the configured unpause roles or be a super-admin. The boolean
// reports whether the set changed.
func (p *Pausable) UnpauseFeature(ctx context.Context, feature string) (bool, error) {
	if err := p.acl.RequireAnyRole(ctx, p.unpauseRoles...); err != nil {
		return false, err
	}

	list, err := p.pausedSet(ctx)
	if err != nil {
		return false, err
	}
	list, changed := removeString(list, feature)
	if !changed {
		return false, nil
	}
	if err := p.savePausedSet(ctx, list); err != nil {
		return false, err
	}

	p.emitter.Emit(ctx, Event{
		Standard: pausableStandard,
		Version:  pausableVersion,
		Event:    "unpause",
		Data:     Unpaused{By: Caller(ctx), Key: feature},
	})
	return true, nil
}

// PauseExemption configures which callers may bypass the pause check of
// IfNotPaused.
type PauseExemption func(*pauseExemptions)

type pauseExemptions struct {
	roles []string
	owner bool
	self  bool
}

// ExceptRoles exempts grantees of any of the given roles.
func ExceptRoles(roles ...string) PauseExemption {
	return func(e *pauseExemptions) {
		e.roles = append(e.roles, roles...)
	}
}

// ExceptOwner exempts the current owner. Requires WithOwnable.
func ExceptOwner() PauseExemption {
	return func(e *pauseExemptions) {
		e.owner = true
	}
}

// ExceptSelf exempts the contract's own identity. Requires WithOwnable.
func ExceptSelf() PauseExemption {
	return func(e *pauseExemptions) {
		e.self = true
	}
}

// IfNotPaused guards a pausable operation named feature. Exemptions are
// evaluated before the pause check, so an exempt caller is never blocked.
// Otherwise the guard returns ErrPaused when feature or PauseAll is
// paused. Call it before running any business logic:
//
//	func (c *App) Transfer(ctx context.Context, ...) error {
//	    if err := c.pausable.IfNotPaused(ctx, "transfer",
//	        guardkit.ExceptRoles("Treasurer")); err != nil {
//	        return err
//	    }
//	    // ... mutations ...
//	}
func (p *Pausable) IfNotPaused(ctx context.Context, feature string, exemptions ...PauseExemption) error {
	var e pauseExemptions
	for _, opt := range exemptions {
		opt(&e)
	}

	if len(e.roles) > 0 {
		exempt, err := p.acl.HasAnyRole(ctx, e.roles, Caller(ctx))
		if err != nil {
			return err
		}
		if exempt {
			return nil
		}
	}
	if p.ownable != nil {
		if e.self && p.ownable.IsSelf(ctx) {
			return nil
		}
		if e.owner {
			isOwner, err := p.ownable.IsOwner(ctx)
			if err != nil {
				return err
			}
			if isOwner {
				return nil
			}
		}
	}

	paused, err := p.IsPaused(ctx, feature)
	if err != nil {
		return err
	}
	if paused {
		return NewError(ErrPaused, "method is paused").WithFeature(feature)
	}
	return nil
}

// IfPaused is the inverse guard: it succeeds only while feature (or
// PauseAll) is paused, and returns ErrNotPaused otherwise. Use it to build
// escape hatches that are only reachable during an incident.
func (p *Pausable) IfPaused(ctx context.Context, feature string) error {
	paused, err := p.IsPaused(ctx, feature)
	if err != nil {
		return err
	}
	if !paused {
		return NewError(ErrNotPaused, "method must be paused").WithFeature(feature)
	}
	return nil
}
