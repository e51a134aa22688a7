package guardkit

import (
	"context"
)

const (
	ownableStandard = "Ownable"
	ownableVersion  = "1.0.0"
)

// DefaultOwnerKey is the default storage slot of the owner account.
const DefaultOwnerKey = "__OWNER__"

// OwnershipTransferred is emitted when ownership changes.
type OwnershipTransferred struct {
	// The previous owner, empty if none.
	PreviousOwner string `json:"previous_owner,omitempty"`
	// The new owner, empty if ownership was removed.
	NewOwner string `json:"new_owner,omitempty"`
}

// Ownable provides a single-owner override: one account (the owner) can be
// granted exclusive access to protected operations, independently from the
// role-based ACL.
type Ownable struct {
	store   Store
	emitter Emitter
	key     string
	self    string
}

// NewOwnable creates an Ownable over the given store. self is the
// contract's own account identity, used for the bootstrap path and the
// OnlySelf/OwnerOrSelf guards. An empty key selects DefaultOwnerKey.
func NewOwnable(store Store, emitter Emitter, key, self string) *Ownable {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if key == "" {
		key = DefaultOwnerKey
	}
	return &Ownable{
		store:   store,
		emitter: emitter,
		key:     key,
		self:    self,
	}
}

// selfID returns the contract identity, preferring a per-call override
// from the context.
func (o *Ownable) selfID(ctx context.Context) string {
	if s := Self(ctx); s != "" {
		return s
	}
	return o.self
}

// OwnerGet returns the current owner, or empty string when no owner is
// set. Pure query.
func (o *Ownable) OwnerGet(ctx context.Context) (string, error) {
	var owner string
	if _, err := loadValue(ctx, o.store, o.key, &owner); err != nil {
		return "", err
	}
	return owner, nil
}

// OwnerSet replaces the current owner. Passing an empty owner removes
// ownership altogether. The boolean reports whether ownership changed;
// transferring to the current owner is an authorized no-op and emits no
// event.
//
// While an owner is set, only that owner may call this. While no owner is
// set, only the contract's own identity may: this bootstrap asymmetry lets
// a freshly constructed contract assign its first owner and then locks
// further changes to owner-only.
func (o *Ownable) OwnerSet(ctx context.Context, owner string) (bool, error) {
	caller := Caller(ctx)
	if caller == "" {
		return false, NewError(ErrNoCaller, "owner_set requires a caller")
	}

	current, err := o.OwnerGet(ctx)
	if err != nil {
		return false, err
	}
	if current != "" {
		if caller != current {
			return false, NewError(ErrUnauthorized, "only the current owner may change ownership").
				WithCaller(caller)
		}
	} else if caller != o.selfID(ctx) {
		return false, NewError(ErrUnauthorized, "only the contract itself may set the initial owner").
			WithCaller(caller)
	}

	if owner == current {
		return false, nil
	}

	if owner == "" {
		if err := deleteKey(ctx, o.store, o.key); err != nil {
			return false, err
		}
	} else if err := saveValue(ctx, o.store, o.key, owner); err != nil {
		return false, err
	}

	o.emitter.Emit(ctx, Event{
		Standard: ownableStandard,
		Version:  ownableVersion,
		Event:    "ownership_transferred",
		Data:     OwnershipTransferred{PreviousOwner: current, NewOwner: owner},
	})
	return true, nil
}

// IsOwner returns whether the caller is the current owner. Always false
// while no owner is set.
func (o *Ownable) IsOwner(ctx context.Context) (bool, error) {
	owner, err := o.OwnerGet(ctx)
	if err != nil {
		return false, err
	}
	return owner != "" && owner == Caller(ctx), nil
}

// IsSelf returns whether the caller is the contract's own identity. Usable
// even without an owner.
func (o *Ownable) IsSelf(ctx context.Context) bool {
	caller := Caller(ctx)
	return caller != "" && caller == o.selfID(ctx)
}

// RequireOwner aborts with ErrUnauthorized unless the caller is the
// current owner.
func (o *Ownable) RequireOwner(ctx context.Context) error {
	ok, err := o.IsOwner(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrUnauthorized, "method must be called by the owner").
			WithCaller(Caller(ctx))
	}
	return nil
}

// RequireSelf aborts with ErrUnauthorized unless the caller is the
// contract itself.
func (o *Ownable) RequireSelf(ctx context.Context) error {
	if !o.IsSelf(ctx) {
		return NewError(ErrUnauthorized, "method must be called by the contract itself").
			WithCaller(Caller(ctx))
	}
	return nil
}

// RequireOwnerOrSelf aborts with ErrUnauthorized unless the caller is the
// current owner or the contract itself.
func (o *Ownable) RequireOwnerOrSelf(ctx context.Context) error {
	if o.IsSelf(ctx) {
		return nil
	}
	ok, err := o.IsOwner(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrUnauthorized, "method must be called by the owner or the contract itself").
			WithCaller(Caller(ctx))
	}
	return nil
}
