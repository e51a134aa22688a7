package guardkit

import (
	"fmt"
	"sync"
)

// MaxRoles is the maximum number of roles a registry may define. Each role
// occupies two bits (grantee and admin) of a 64-bit permission mask, with
// one bit reserved for super-admin.
const MaxRoles = 31

// permissionFlag is a single bit of an account's permission mask.
//
// Layout: bit 0 is super-admin; the role at registry index i owns bit 2i+1
// (grantee) and bit 2i+2 (admin). Shifting a grantee bit left by one yields
// the matching admin bit, which keeps additive migrations cheap.
type permissionFlag uint64

const superAdminFlag permissionFlag = 1

func granteeFlagAt(index int) permissionFlag {
	return 1 << (2*index + 1)
}

func adminFlagAt(index int) permissionFlag {
	return 1 << (2*index + 2)
}

// Registry holds the ordered role definitions for a contract instance.
// It is created at startup and should be treated as immutable afterwards.
//
// The declaration order is part of the persisted permission layout:
// appending roles is safe, but reordering or removing a role silently
// remaps existing grants. Treat any such change as a breaking migration.
type Registry struct {
	mu    sync.RWMutex
	names []string
	index map[string]int
}

// NewRegistry creates an empty role registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Role appends a role definition and returns the registry for chaining.
//
// Example:
//
//	registry := guardkit.NewRegistry().
//	    Role("PauseManager").
//	    Role("Upgrader")
//
// Role panics on duplicate names or when MaxRoles is exceeded; both are
// startup-time misconfigurations.
func (r *Registry) Role(name string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		panic("guardkit: role name must not be empty")
	}
	if _, exists := r.index[name]; exists {
		panic(fmt.Sprintf("guardkit: role %q already defined", name))
	}
	if len(r.names) >= MaxRoles {
		panic(fmt.Sprintf("guardkit: at most %d roles may be defined", MaxRoles))
	}

	r.index[name] = len(r.names)
	r.names = append(r.names, name)
	return r
}

// Names returns all role names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Len returns the number of defined roles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Index returns the declaration index of a role.
func (r *Registry) Index(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	return i, ok
}

// ValidateRole checks if a role is defined.
func (r *Registry) ValidateRole(name string) error {
	if _, ok := r.Index(name); !ok {
		return fmt.Errorf("%w: role %q not defined", ErrInvalidRole, name)
	}
	return nil
}

// ValidateRoles checks that every given role is defined.
func (r *Registry) ValidateRoles(names []string) error {
	for _, name := range names {
		if err := r.ValidateRole(name); err != nil {
			return err
		}
	}
	return nil
}

// granteeFlag returns the permission bit granted to holders of the role.
func (r *Registry) granteeFlag(name string) (permissionFlag, error) {
	i, ok := r.Index(name)
	if !ok {
		return 0, fmt.Errorf("%w: role %q not defined", ErrInvalidRole, name)
	}
	return granteeFlagAt(i), nil
}

// adminFlag returns the permission bit marking admins of the role.
func (r *Registry) adminFlag(name string) (permissionFlag, error) {
	i, ok := r.Index(name)
	if !ok {
		return 0, fmt.Errorf("%w: role %q not defined", ErrInvalidRole, name)
	}
	return adminFlagAt(i), nil
}

// anyGranteeFlags folds the grantee bits of all given roles into one mask.
func (r *Registry) anyGranteeFlags(names []string) (permissionFlag, error) {
	var mask permissionFlag
	for _, name := range names {
		flag, err := r.granteeFlag(name)
		if err != nil {
			return 0, err
		}
		mask |= flag
	}
	return mask, nil
}
