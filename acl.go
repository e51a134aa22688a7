package guardkit

import (
	"context"
	"math/bits"
	"strconv"
)

const (
	aclStandard = "AccessControllable"
	aclVersion  = "1.0.0"
)

// DefaultACLPrefix is the default storage namespace of the ACL component.
const DefaultACLPrefix = "__acl"

// SuperAdminAdded is emitted when an account is made super-admin.
type SuperAdminAdded struct {
	// Account that was added as super-admin.
	Account string `json:"account"`
	// Account that added the super-admin.
	By string `json:"by"`
}

// SuperAdminRevoked is emitted when super-admin permissions are revoked.
type SuperAdminRevoked struct {
	// Account from whom permissions were revoked.
	Account string `json:"account"`
	// Account that revoked the permissions.
	By string `json:"by"`
}

// AdminAdded is emitted when an account is made admin of a role.
type AdminAdded struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	By      string `json:"by"`
}

// AdminRevoked is emitted when admin permissions for a role are revoked.
type AdminRevoked struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	By      string `json:"by"`
}

// RoleGranted is emitted when a role is granted to an account.
type RoleGranted struct {
	Role string `json:"role"`
	To   string `json:"to"`
	By   string `json:"by"`
}

// RoleRevoked is emitted when a role is revoked from an account.
type RoleRevoked struct {
	Role string `json:"role"`
	From string `json:"from"`
	By   string `json:"by"`
}

// PermissionedAccountsPerRole collects all admins and grantees of a role.
type PermissionedAccountsPerRole struct {
	Admins   []string `json:"admins"`
	Grantees []string `json:"grantees"`
}

// PermissionedAccounts collects super-admins and the admins and grantees of
// every registered role.
type PermissionedAccounts struct {
	SuperAdmins []string                               `json:"super_admins"`
	Roles       map[string]PermissionedAccountsPerRole `json:"roles"`
}

// ACL is the permission store and access evaluator: it persists role
// memberships and decides, per call, whether a caller is authorized.
//
// Storage layout under the configured prefix: one permission bitmask per
// account plus one bearer list per permission bit (for enumeration). The
// bit positions are derived from the registry's role order, so the
// registry must not be reordered once state exists.
type ACL struct {
	store    Store
	registry *Registry
	emitter  Emitter
	prefix   string
}

// NewACL creates an ACL over the given store and registry. A nil emitter
// disables events, an empty prefix selects DefaultACLPrefix.
func NewACL(store Store, registry *Registry, emitter Emitter, prefix string) *ACL {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if prefix == "" {
		prefix = DefaultACLPrefix
	}
	return &ACL{
		store:    store,
		registry: registry,
		emitter:  emitter,
		prefix:   prefix,
	}
}

// Registry returns the role registry backing this ACL.
func (a *ACL) Registry() *Registry {
	return a.registry
}

func (a *ACL) permissionsKey(account string) string {
	return a.prefix + ":p:" + account
}

func (a *ACL) bearersKey(flag permissionFlag) string {
	return a.prefix + ":b:" + strconv.Itoa(bits.TrailingZeros64(uint64(flag)))
}

func (a *ACL) permissions(ctx context.Context, account string) (permissionFlag, error) {
	var mask uint64
	if _, err := loadValue(ctx, a.store, a.permissionsKey(account), &mask); err != nil {
		return 0, err
	}
	return permissionFlag(mask), nil
}

func (a *ACL) setPermissions(ctx context.Context, account string, mask permissionFlag) error {
	key := a.permissionsKey(account)
	if mask == 0 {
		return deleteKey(ctx, a.store, key)
	}
	return saveValue(ctx, a.store, key, uint64(mask))
}

func (a *ACL) bearers(ctx context.Context, flag permissionFlag) ([]string, error) {
	var list []string
	if _, err := loadValue(ctx, a.store, a.bearersKey(flag), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (a *ACL) setBearers(ctx context.Context, flag permissionFlag, list []string) error {
	key := a.bearersKey(flag)
	if len(list) == 0 {
		return deleteKey(ctx, a.store, key)
	}
	return saveValue(ctx, a.store, key, list)
}

// addFlag sets flag on the account's permission mask and registers the
// account as bearer. The boolean reports whether the flag was newly set.
func (a *ACL) addFlag(ctx context.Context, flag permissionFlag, account string) (bool, error) {
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	if mask&flag != 0 {
		return false, nil
	}

	list, err := a.bearers(ctx, flag)
	if err != nil {
		return false, err
	}
	list, _ = appendUnique(list, account)

	if err := a.setPermissions(ctx, account, mask|flag); err != nil {
		return false, err
	}
	if err := a.setBearers(ctx, flag, list); err != nil {
		return false, err
	}
	return true, nil
}

// removeFlag clears flag from the account's permission mask and drops the
// account from the bearer list. The boolean reports whether the flag had
// been set.
func (a *ACL) removeFlag(ctx context.Context, flag permissionFlag, account string) (bool, error) {
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	if mask&flag == 0 {
		return false, nil
	}

	list, err := a.bearers(ctx, flag)
	if err != nil {
		return false, err
	}
	list, _ = removeString(list, account)

	if err := a.setPermissions(ctx, account, mask&^flag); err != nil {
		return false, err
	}
	if err := a.setBearers(ctx, flag, list); err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// SUPER-ADMIN OPERATIONS
// ============================================================================

// InitSuperAdmin adds account as super-admin without any permission check,
// provided no super-admin exists yet. It returns whether the account was
// added. Intended for contract initialization, it doubles as a recovery
// path if all super-admins have (mistakenly) been removed; enforcing
// "called once" is the integrator's responsibility.
func (a *ACL) InitSuperAdmin(ctx context.Context, account string) (bool, error) {
	existing, err := a.bearers(ctx, superAdminFlag)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}
	return a.addSuperAdminUnchecked(ctx, account)
}

func (a *ACL) addSuperAdminUnchecked(ctx context.Context, account string) (bool, error) {
	added, err := a.addFlag(ctx, superAdminFlag, account)
	if err != nil || !added {
		return added, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "super_admin_added",
		Data:     SuperAdminAdded{Account: account, By: Caller(ctx)},
	})
	return true, nil
}

func (a *ACL) revokeSuperAdminUnchecked(ctx context.Context, account string) (bool, error) {
	removed, err := a.removeFlag(ctx, superAdminFlag, account)
	if err != nil || !removed {
		return removed, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "super_admin_revoked",
		Data:     SuperAdminRevoked{Account: account, By: Caller(ctx)},
	})
	return true, nil
}

// AddSuperAdmin adds account as super-admin. The caller must be a
// super-admin; otherwise ErrUnauthorized is returned and state is not
// modified. The boolean reports whether account is a new super-admin.
func (a *ACL) AddSuperAdmin(ctx context.Context, account string) (bool, error) {
	if err := a.requireSuperAdmin(ctx); err != nil {
		return false, err
	}
	return a.addSuperAdminUnchecked(ctx, account)
}

// RevokeSuperAdmin revokes super-admin permissions from account. The
// caller must be a super-admin, which means any super-admin may revoke any
// other. The boolean reports whether account had been a super-admin.
func (a *ACL) RevokeSuperAdmin(ctx context.Context, account string) (bool, error) {
	if err := a.requireSuperAdmin(ctx); err != nil {
		return false, err
	}
	return a.revokeSuperAdminUnchecked(ctx, account)
}

// TransferSuperAdmin revokes super-admin permissions from the caller and
// adds account as super-admin in one call. The boolean reports whether
// account is a new super-admin.
func (a *ACL) TransferSuperAdmin(ctx context.Context, account string) (bool, error) {
	if err := a.requireSuperAdmin(ctx); err != nil {
		return false, err
	}
	if _, err := a.revokeSuperAdminUnchecked(ctx, MustCaller(ctx)); err != nil {
		return false, err
	}
	return a.addSuperAdminUnchecked(ctx, account)
}

// IsSuperAdmin returns whether account is a super-admin. Super-admins have
// admin permissions for every role but are not grantees of any role.
func (a *ACL) IsSuperAdmin(ctx context.Context, account string) (bool, error) {
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	return mask&superAdminFlag != 0, nil
}

func (a *ACL) requireSuperAdmin(ctx context.Context) error {
	caller := Caller(ctx)
	if caller == "" {
		return NewError(ErrNoCaller, "super-admin operation requires a caller")
	}
	ok, err := a.IsSuperAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrUnauthorized, "caller is not a super-admin").WithCaller(caller)
	}
	return nil
}

// ============================================================================
// ADMIN OPERATIONS
// ============================================================================

// AddAdmin makes account an admin of role. The caller must be an admin of
// role (super-admins qualify); otherwise ErrUnauthorized is returned. The
// boolean reports whether account is a new admin.
func (a *ACL) AddAdmin(ctx context.Context, role, account string) (bool, error) {
	if err := a.requireAdmin(ctx, role); err != nil {
		return false, err
	}
	return a.addAdminUnchecked(ctx, role, account)
}

func (a *ACL) addAdminUnchecked(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.adminFlag(role)
	if err != nil {
		return false, err
	}
	added, err := a.addFlag(ctx, flag, account)
	if err != nil || !added {
		return added, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "admin_added",
		Data:     AdminAdded{Role: role, Account: account, By: Caller(ctx)},
	})
	return true, nil
}

// RevokeAdmin revokes admin permissions for role from account. The caller
// must be an admin of role. The boolean reports whether account had been
// an admin.
func (a *ACL) RevokeAdmin(ctx context.Context, role, account string) (bool, error) {
	if err := a.requireAdmin(ctx, role); err != nil {
		return false, err
	}
	return a.revokeAdminUnchecked(ctx, role, account)
}

// RenounceAdmin revokes the caller's own admin permissions for role. It
// always succeeds without a permission check, since self-removal cannot
// escalate privilege. The boolean reports whether the caller had been an
// admin of role.
func (a *ACL) RenounceAdmin(ctx context.Context, role string) (bool, error) {
	caller := Caller(ctx)
	if caller == "" {
		return false, NewError(ErrNoCaller, "renounce requires a caller")
	}
	return a.revokeAdminUnchecked(ctx, role, caller)
}

func (a *ACL) revokeAdminUnchecked(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.adminFlag(role)
	if err != nil {
		return false, err
	}
	removed, err := a.removeFlag(ctx, flag, account)
	if err != nil || !removed {
		return removed, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "admin_revoked",
		Data:     AdminRevoked{Role: role, Account: account, By: Caller(ctx)},
	})
	return true, nil
}

// IsAdmin returns whether account is an admin of role, either explicitly
// or through super-admin permissions. Admin permissions do not imply being
// a grantee of the role.
func (a *ACL) IsAdmin(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.adminFlag(role)
	if err != nil {
		return false, err
	}
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	return mask&(flag|superAdminFlag) != 0, nil
}

func (a *ACL) requireAdmin(ctx context.Context, role string) error {
	caller := Caller(ctx)
	if caller == "" {
		return NewError(ErrNoCaller, "admin operation requires a caller")
	}
	ok, err := a.IsAdmin(ctx, role, caller)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrUnauthorized, "caller is not an admin of the role").
			WithRole(role).
			WithCaller(caller)
	}
	return nil
}

// ============================================================================
// ROLE GRANT OPERATIONS
// ============================================================================

// GrantRole grants role to account. The caller must be an admin of role.
// The boolean reports whether account is a new grantee.
func (a *ACL) GrantRole(ctx context.Context, role, account string) (bool, error) {
	if err := a.requireAdmin(ctx, role); err != nil {
		return false, err
	}
	return a.grantRoleUnchecked(ctx, role, account)
}

func (a *ACL) grantRoleUnchecked(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.granteeFlag(role)
	if err != nil {
		return false, err
	}
	added, err := a.addFlag(ctx, flag, account)
	if err != nil || !added {
		return added, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "role_granted",
		Data:     RoleGranted{Role: role, To: account, By: Caller(ctx)},
	})
	return true, nil
}

// RevokeRole revokes role from account. The caller must be an admin of
// role. The boolean reports whether account had been a grantee.
func (a *ACL) RevokeRole(ctx context.Context, role, account string) (bool, error) {
	if err := a.requireAdmin(ctx, role); err != nil {
		return false, err
	}
	return a.revokeRoleUnchecked(ctx, role, account)
}

// RenounceRole revokes role from the caller without a permission check.
// The boolean reports whether the caller had been a grantee.
func (a *ACL) RenounceRole(ctx context.Context, role string) (bool, error) {
	caller := Caller(ctx)
	if caller == "" {
		return false, NewError(ErrNoCaller, "renounce requires a caller")
	}
	return a.revokeRoleUnchecked(ctx, role, caller)
}

func (a *ACL) revokeRoleUnchecked(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.granteeFlag(role)
	if err != nil {
		return false, err
	}
	removed, err := a.removeFlag(ctx, flag, account)
	if err != nil || !removed {
		return removed, err
	}
	a.emitter.Emit(ctx, Event{
		Standard: aclStandard,
		Version:  aclVersion,
		Event:    "role_revoked",
		Data:     RoleRevoked{Role: role, From: account, By: Caller(ctx)},
	})
	return true, nil
}

// HasRole returns whether account has been granted role. Admin and
// super-admin permissions do not count as holding the role.
func (a *ACL) HasRole(ctx context.Context, role, account string) (bool, error) {
	flag, err := a.registry.granteeFlag(role)
	if err != nil {
		return false, err
	}
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	return mask&flag != 0, nil
}

// HasAnyRole returns whether account has been granted any of roles.
func (a *ACL) HasAnyRole(ctx context.Context, roles []string, account string) (bool, error) {
	target, err := a.registry.anyGranteeFlags(roles)
	if err != nil {
		return false, err
	}
	mask, err := a.permissions(ctx, account)
	if err != nil {
		return false, err
	}
	return mask&target != 0, nil
}

// RequireAnyRole is the fail-closed role gate: it succeeds only when the
// caller is a super-admin or holds at least one of roles, and returns
// ErrUnauthorized otherwise. Protected operations call it before touching
// any state.
func (a *ACL) RequireAnyRole(ctx context.Context, roles ...string) error {
	caller := Caller(ctx)
	if caller == "" {
		return NewError(ErrNoCaller, "role-gated operation requires a caller")
	}
	target, err := a.registry.anyGranteeFlags(roles)
	if err != nil {
		return err
	}
	mask, err := a.permissions(ctx, caller)
	if err != nil {
		return err
	}
	if mask&(target|superAdminFlag) == 0 {
		return NewError(ErrUnauthorized, "caller holds none of the required roles").
			WithCaller(caller)
	}
	return nil
}

// ============================================================================
// ENUMERATION
// ============================================================================

// SuperAdmins returns up to limit super-admins, skipping the first skip.
// Iteration order is stable between mutations, not across them.
func (a *ACL) SuperAdmins(ctx context.Context, skip, limit int) ([]string, error) {
	list, err := a.bearers(ctx, superAdminFlag)
	if err != nil {
		return nil, err
	}
	return paginate(list, skip, limit), nil
}

// Admins returns up to limit admins of role, skipping the first skip.
// Super-admins are not included unless explicitly added as role admins.
func (a *ACL) Admins(ctx context.Context, role string, skip, limit int) ([]string, error) {
	flag, err := a.registry.adminFlag(role)
	if err != nil {
		return nil, err
	}
	list, err := a.bearers(ctx, flag)
	if err != nil {
		return nil, err
	}
	return paginate(list, skip, limit), nil
}

// Grantees returns up to limit grantees of role, skipping the first skip.
func (a *ACL) Grantees(ctx context.Context, role string, skip, limit int) ([]string, error) {
	flag, err := a.registry.granteeFlag(role)
	if err != nil {
		return nil, err
	}
	list, err := a.bearers(ctx, flag)
	if err != nil {
		return nil, err
	}
	return paginate(list, skip, limit), nil
}

// PermissionedAccounts returns every super-admin plus the admins and
// grantees of all registered roles. For large ACLs prefer the paginated
// queries above.
func (a *ACL) PermissionedAccounts(ctx context.Context) (PermissionedAccounts, error) {
	out := PermissionedAccounts{
		Roles: make(map[string]PermissionedAccountsPerRole),
	}

	superAdmins, err := a.bearers(ctx, superAdminFlag)
	if err != nil {
		return PermissionedAccounts{}, err
	}
	out.SuperAdmins = superAdmins
	if out.SuperAdmins == nil {
		out.SuperAdmins = []string{}
	}

	for _, role := range a.registry.Names() {
		adminFlag, err := a.registry.adminFlag(role)
		if err != nil {
			return PermissionedAccounts{}, err
		}
		admins, err := a.bearers(ctx, adminFlag)
		if err != nil {
			return PermissionedAccounts{}, err
		}
		granteeFlag, err := a.registry.granteeFlag(role)
		if err != nil {
			return PermissionedAccounts{}, err
		}
		grantees, err := a.bearers(ctx, granteeFlag)
		if err != nil {
			return PermissionedAccounts{}, err
		}
		if admins == nil {
			admins = []string{}
		}
		if grantees == nil {
			grantees = []string{}
		}
		out.Roles[role] = PermissionedAccountsPerRole{
			Admins:   admins,
			Grantees: grantees,
		}
	}
	return out, nil
}
