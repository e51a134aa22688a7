package guardkit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	upgradableStandard = "Upgradable"
	upgradableVersion  = "1.0.0"
)

// Default storage slots of the upgradable component.
const (
	DefaultCodeKey            = "__CODE__"
	DefaultStagingDurationKey = "__STAGING_DURATION__"
	DefaultDurationUpdateKey  = "__STAGING_DURATION_UPDATE__"
)

// CodeStaged is emitted when new code is staged.
type CodeStaged struct {
	// Account that staged the code.
	By string `json:"by"`
	// Hex sha256 of the staged payload.
	CodeHash string `json:"code_hash"`
}

// CodeDeployed is emitted when staged code is deployed.
type CodeDeployed struct {
	By       string `json:"by"`
	CodeHash string `json:"code_hash"`
}

// DurationUpdateStaged is emitted when a staging-duration update is staged.
type DurationUpdateStaged struct {
	By       string        `json:"by"`
	Duration time.Duration `json:"duration"`
}

// DurationUpdated is emitted when a staged staging-duration update is
// applied.
type DurationUpdated struct {
	By       string        `json:"by"`
	Duration time.Duration `json:"duration"`
}

// Deployer replaces the running program with a new payload. It is the
// host-side collaborator of the upgradable component: GuardKit decides
// when a deployment is allowed, the Deployer performs it.
type Deployer interface {
	Deploy(ctx context.Context, code []byte) error
}

// DeployerFunc adapts a function to the Deployer interface.
type DeployerFunc func(ctx context.Context, code []byte) error

// Deploy implements Deployer.
func (f DeployerFunc) Deploy(ctx context.Context, code []byte) error {
	return f(ctx, code)
}

// stagedSlot is the persisted staging slot. The payload is stored
// zstd-compressed; the hash covers the raw bytes.
type stagedSlot struct {
	Code     []byte `cbor:"code"`
	Hash     []byte `cbor:"hash"`
	StagedAt int64  `cbor:"staged_at"` // unix nanoseconds
}

// durationUpdateSlot is the persisted pending staging-duration update.
type durationUpdateSlot struct {
	Duration int64 `cbor:"duration"` // nanoseconds
	StagedAt int64 `cbor:"staged_at"`
}

// Upgradable implements a staged-code lifecycle with a time-delay guard.
// Code is first staged, becomes publicly queryable, and may only be
// deployed once the staging duration has elapsed. Updates to the staging
// duration itself follow the same stage-then-apply pattern, gated by the
// currently active duration so a momentary hijack cannot shorten the delay
// and exploit it in the same breath.
type Upgradable struct {
	store       Store
	acl         *ACL
	ownable     *Ownable
	emitter     Emitter
	deployer    Deployer
	codeKey     string
	durationKey string
	updateKey   string
	stagers     []string
	deployers   []string
	duration    time.Duration // initial duration until one is persisted
}

// NewUpgradable creates an Upgradable over the given store. StageCode is
// gated on stagerRoles and DeployCode on deployerRoles (super-admins
// always qualify); wire an Ownable with WithOwnable to let the owner
// bypass the role gates. duration is the staging duration in effect until
// a persisted update overrides it. Empty keys select the defaults.
func NewUpgradable(store Store, acl *ACL, emitter Emitter, codeKey, durationKey, updateKey string, stagerRoles, deployerRoles []string, duration time.Duration) *Upgradable {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if codeKey == "" {
		codeKey = DefaultCodeKey
	}
	if durationKey == "" {
		durationKey = DefaultStagingDurationKey
	}
	if updateKey == "" {
		updateKey = DefaultDurationUpdateKey
	}
	return &Upgradable{
		store:       store,
		acl:         acl,
		emitter:     emitter,
		codeKey:     codeKey,
		durationKey: durationKey,
		updateKey:   updateKey,
		stagers:     stagerRoles,
		deployers:   deployerRoles,
		duration:    duration,
	}
}

// WithOwnable wires an Ownable so the owner (and the contract itself) may
// stage and deploy without holding a role. Returns the Upgradable for
// chaining.
func (u *Upgradable) WithOwnable(o *Ownable) *Upgradable {
	u.ownable = o
	return u
}

// WithDeployer wires the host deployer invoked by DeployCode. Without one,
// DeployCode still enforces the state machine and returns the payload to
// the caller. Returns the Upgradable for chaining.
func (u *Upgradable) WithDeployer(d Deployer) *Upgradable {
	u.deployer = d
	return u
}

// authorize passes when the caller is owner or self (if an Ownable is
// wired) or holds any of roles per the fail-closed ACL gate.
func (u *Upgradable) authorize(ctx context.Context, roles []string) error {
	if u.ownable != nil {
		if u.ownable.IsSelf(ctx) {
			return nil
		}
		isOwner, err := u.ownable.IsOwner(ctx)
		if err != nil {
			return err
		}
		if isOwner {
			return nil
		}
	}
	return u.acl.RequireAnyRole(ctx, roles...)
}

// StageCode stages code for a later deployment, discarding any previously
// staged payload. Staging an empty payload clears the slot. The caller
// must be authorized to stage (stager role, super-admin, or owner/self).
func (u *Upgradable) StageCode(ctx context.Context, code []byte) error {
	if err := u.authorize(ctx, u.stagers); err != nil {
		return err
	}

	if len(code) == 0 {
		return deleteKey(ctx, u.store, u.codeKey)
	}

	hash := sha256.Sum256(code)
	slot := stagedSlot{
		Code:     compressPayload(code),
		Hash:     hash[:],
		StagedAt: BlockTime(ctx).UnixNano(),
	}
	if err := saveValue(ctx, u.store, u.codeKey, slot); err != nil {
		return err
	}

	u.emitter.Emit(ctx, Event{
		Standard: upgradableStandard,
		Version:  upgradableVersion,
		Event:    "stage_code",
		Data:     CodeStaged{By: Caller(ctx), CodeHash: hex.EncodeToString(hash[:])},
	})
	return nil
}

func (u *Upgradable) loadStagedCode(ctx context.Context) (*stagedSlot, error) {
	var slot stagedSlot
	ok, err := loadValue(ctx, u.store, u.codeKey, &slot)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

// StagedCode returns the staged payload, or nil when nothing is staged.
// Pure query: staged code is publicly visible by design.
func (u *Upgradable) StagedCode(ctx context.Context) ([]byte, error) {
	slot, err := u.loadStagedCode(ctx)
	if err != nil || slot == nil {
		return nil, err
	}
	return decompressPayload(slot.Code)
}

// StagedCodeHash returns the sha256 of the staged payload, or nil when
// nothing is staged.
func (u *Upgradable) StagedCodeHash(ctx context.Context) ([]byte, error) {
	slot, err := u.loadStagedCode(ctx)
	if err != nil || slot == nil {
		return nil, err
	}
	return slot.Hash, nil
}

// StagingDuration returns the staging duration currently in effect.
func (u *Upgradable) StagingDuration(ctx context.Context) (time.Duration, error) {
	var nanos int64
	ok, err := loadValue(ctx, u.store, u.durationKey, &nanos)
	if err != nil {
		return 0, err
	}
	if !ok {
		return u.duration, nil
	}
	return time.Duration(nanos), nil
}

// DeployCode deploys the staged payload and clears the staging slot. It
// fails with ErrNoStagedCode when nothing is staged and with
// ErrDelayNotElapsed before stagedAt+duration. The caller must be
// authorized to deploy. The deployed payload is returned.
func (u *Upgradable) DeployCode(ctx context.Context) ([]byte, error) {
	if err := u.authorize(ctx, u.deployers); err != nil {
		return nil, err
	}

	slot, err := u.loadStagedCode(ctx)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		return nil, NewError(ErrNoStagedCode, "stage code before deploying")
	}

	duration, err := u.StagingDuration(ctx)
	if err != nil {
		return nil, err
	}
	deployableAt := time.Unix(0, slot.StagedAt).Add(duration)
	if BlockTime(ctx).Before(deployableAt) {
		return nil, NewError(ErrDelayNotElapsed, "staged code is deployable at "+deployableAt.UTC().Format(time.RFC3339))
	}

	code, err := decompressPayload(slot.Code)
	if err != nil {
		return nil, err
	}
	if u.deployer != nil {
		if err := u.deployer.Deploy(ctx, code); err != nil {
			return nil, err
		}
	}
	if err := deleteKey(ctx, u.store, u.codeKey); err != nil {
		return nil, err
	}

	u.emitter.Emit(ctx, Event{
		Standard: upgradableStandard,
		Version:  upgradableVersion,
		Event:    "deploy_code",
		Data:     CodeDeployed{By: Caller(ctx), CodeHash: hex.EncodeToString(slot.Hash)},
	})
	return code, nil
}

// DeployCodeAndCall deploys like DeployCode and then invokes fn with the
// deployed payload, typically to run a state migration on the new code.
//
// The deployment commits before fn runs: when fn fails, its error is
// returned but the deployment stands and the staging slot stays cleared.
// Callers needing rollback must stage the previous payload again.
func (u *Upgradable) DeployCodeAndCall(ctx context.Context, fn func(ctx context.Context, code []byte) error) ([]byte, error) {
	code, err := u.DeployCode(ctx)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(ctx, code); err != nil {
			return code, err
		}
	}
	return code, nil
}

// StageUpdateStagingDuration stages a new staging duration, discarding any
// previously staged update. The caller must be authorized to stage.
func (u *Upgradable) StageUpdateStagingDuration(ctx context.Context, d time.Duration) error {
	if err := u.authorize(ctx, u.stagers); err != nil {
		return err
	}
	if d < 0 {
		return NewError(ErrInvalidState, "staging duration must not be negative")
	}

	slot := durationUpdateSlot{
		Duration: int64(d),
		StagedAt: BlockTime(ctx).UnixNano(),
	}
	if err := saveValue(ctx, u.store, u.updateKey, slot); err != nil {
		return err
	}

	u.emitter.Emit(ctx, Event{
		Standard: upgradableStandard,
		Version:  upgradableVersion,
		Event:    "stage_update_staging_duration",
		Data:     DurationUpdateStaged{By: Caller(ctx), Duration: d},
	})
	return nil
}

// StagedStagingDuration returns the staged duration update, if any.
func (u *Upgradable) StagedStagingDuration(ctx context.Context) (time.Duration, bool, error) {
	var slot durationUpdateSlot
	ok, err := loadValue(ctx, u.store, u.updateKey, &slot)
	if err != nil || !ok {
		return 0, false, err
	}
	return time.Duration(slot.Duration), true, nil
}

// ApplyUpdateStagingDuration applies the staged duration update. The delay
// gate uses the currently active duration, not the proposed one, so
// shortening the delay still takes a full current-duration wait. The
// caller must be authorized to deploy.
func (u *Upgradable) ApplyUpdateStagingDuration(ctx context.Context) error {
	if err := u.authorize(ctx, u.deployers); err != nil {
		return err
	}

	var slot durationUpdateSlot
	ok, err := loadValue(ctx, u.store, u.updateKey, &slot)
	if err != nil {
		return err
	}
	if !ok {
		return NewError(ErrInvalidState, "no staging duration update staged")
	}

	current, err := u.StagingDuration(ctx)
	if err != nil {
		return err
	}
	applicableAt := time.Unix(0, slot.StagedAt).Add(current)
	if BlockTime(ctx).Before(applicableAt) {
		return NewError(ErrDelayNotElapsed, "duration update is applicable at "+applicableAt.UTC().Format(time.RFC3339))
	}

	if err := saveValue(ctx, u.store, u.durationKey, slot.Duration); err != nil {
		return err
	}
	if err := deleteKey(ctx, u.store, u.updateKey); err != nil {
		return err
	}

	u.emitter.Emit(ctx, Event{
		Standard: upgradableStandard,
		Version:  upgradableVersion,
		Event:    "apply_update_staging_duration",
		Data:     DurationUpdated{By: Caller(ctx), Duration: time.Duration(slot.Duration)},
	})
	return nil
}

// Payload compression. Code payloads are large and highly compressible, so
// they are stored as zstd frames. The shared coders are stateless
// (EncodeAll/DecodeAll only).
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func initZstd() {
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
}

func compressPayload(raw []byte) []byte {
	zstdOnce.Do(initZstd)
	return zstdEncoder.EncodeAll(raw, nil)
}

func decompressPayload(compressed []byte) ([]byte, error) {
	zstdOnce.Do(initZstd)
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, storageErr("decompress staged code", err)
	}
	return raw, nil
}
