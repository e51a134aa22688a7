package guardkit

// Contract bundles the access-control components over one shared store:
// the role-based ACL, single ownership, feature pausing and delay-gated
// code staging. The components are independently usable; the aggregate
// wires them together the common way (guards share the ACL, pause
// exemptions and upgrade authorization can see the owner).
type Contract struct {
	cfg        Config
	store      Store
	registry   *Registry
	emitter    Emitter
	acl        *ACL
	ownable    *Ownable
	pausable   *Pausable
	upgradable *Upgradable
}

// ContractOption configures a Contract during construction.
type ContractOption func(*contractOptions)

type contractOptions struct {
	selfID        string
	emitter       Emitter
	deployer      Deployer
	pauseRoles    []string
	unpauseRoles  []string
	codeStagers   []string
	codeDeployers []string
}

// WithSelfID sets the contract's own account identity, used by the
// ownership bootstrap and the self guards.
func WithSelfID(id string) ContractOption {
	return func(o *contractOptions) {
		o.selfID = id
	}
}

// WithEmitter replaces the default slog emitter.
func WithEmitter(e Emitter) ContractOption {
	return func(o *contractOptions) {
		o.emitter = e
	}
}

// WithDeployer wires the host deployer invoked on code deployment.
func WithDeployer(d Deployer) ContractOption {
	return func(o *contractOptions) {
		o.deployer = d
	}
}

// WithPauseRoles sets the roles allowed to pause features.
func WithPauseRoles(roles ...string) ContractOption {
	return func(o *contractOptions) {
		o.pauseRoles = append(o.pauseRoles, roles...)
	}
}

// WithUnpauseRoles sets the roles allowed to unpause features.
func WithUnpauseRoles(roles ...string) ContractOption {
	return func(o *contractOptions) {
		o.unpauseRoles = append(o.unpauseRoles, roles...)
	}
}

// WithCodeStagers sets the roles allowed to stage code and staging
// duration updates.
func WithCodeStagers(roles ...string) ContractOption {
	return func(o *contractOptions) {
		o.codeStagers = append(o.codeStagers, roles...)
	}
}

// WithCodeDeployers sets the roles allowed to deploy staged code and
// apply staged duration updates.
func WithCodeDeployers(roles ...string) ContractOption {
	return func(o *contractOptions) {
		o.codeDeployers = append(o.codeDeployers, roles...)
	}
}

// NewContract creates a Contract over store with the given role registry.
// Role names passed through options must exist in the registry. Unless
// overridden with WithEmitter, events are logged through slog.
func NewContract(cfg Config, store Store, registry *Registry, opts ...ContractOption) (*Contract, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, NewError(ErrConfig, "store must not be nil")
	}
	if registry == nil {
		return nil, NewError(ErrConfig, "registry must not be nil")
	}

	var o contractOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.emitter == nil {
		o.emitter = NewSlogEmitter(nil)
	}
	for _, roles := range [][]string{o.pauseRoles, o.unpauseRoles, o.codeStagers, o.codeDeployers} {
		if err := registry.ValidateRoles(roles); err != nil {
			return nil, err
		}
	}

	c := &Contract{
		cfg:      cfg,
		store:    store,
		registry: registry,
		emitter:  o.emitter,
	}
	c.acl = NewACL(store, registry, o.emitter, cfg.ACLPrefix)
	c.ownable = NewOwnable(store, o.emitter, cfg.OwnerKey, o.selfID)
	c.pausable = NewPausable(store, c.acl, o.emitter, cfg.PausedKey, o.pauseRoles, o.unpauseRoles).
		WithOwnable(c.ownable)
	c.upgradable = NewUpgradable(store, c.acl, o.emitter, cfg.CodeKey, cfg.StagingDurationKey, cfg.DurationUpdateKey, o.codeStagers, o.codeDeployers, cfg.StagingDuration).
		WithOwnable(c.ownable)
	if o.deployer != nil {
		c.upgradable.WithDeployer(o.deployer)
	}
	return c, nil
}

// ACL returns the role-based permission component.
func (c *Contract) ACL() *ACL {
	return c.acl
}

// Ownable returns the ownership component.
func (c *Contract) Ownable() *Ownable {
	return c.ownable
}

// Pausable returns the pause component.
func (c *Contract) Pausable() *Pausable {
	return c.pausable
}

// Upgradable returns the code staging component.
func (c *Contract) Upgradable() *Upgradable {
	return c.upgradable
}

// Store returns the backing store.
func (c *Contract) Store() Store {
	return c.store
}

// Registry returns the role registry.
func (c *Contract) Registry() *Registry {
	return c.registry
}

// Config returns the configuration the contract was built with.
func (c *Contract) Config() Config {
	return c.cfg
}
