package guardkit

import (
	"errors"
	"fmt"
)

// Sentinel errors for GuardKit operations.
var (
	// ErrUnauthorized is returned when a caller fails a role, owner or self
	// guard. It is reserved for permission denial and never used for
	// idempotent no-ops.
	ErrUnauthorized = errors.New("guardkit: unauthorized")

	// ErrInvalidRole is returned when a role name is not defined in the
	// registry.
	ErrInvalidRole = errors.New("guardkit: invalid role")

	// ErrNoCaller is returned when no caller identity is found in context.
	ErrNoCaller = errors.New("guardkit: no caller in context")

	// ErrPaused is returned by guards when the named feature (or "ALL") is
	// paused and the caller holds no exemption.
	ErrPaused = errors.New("guardkit: feature is paused")

	// ErrNotPaused is returned by the escape-hatch guard when the named
	// feature is not paused.
	ErrNotPaused = errors.New("guardkit: feature must be paused")

	// ErrNoStagedCode is returned when deploying while nothing is staged.
	ErrNoStagedCode = errors.New("guardkit: no staged code")

	// ErrDelayNotElapsed is returned when a delay-gated operation runs
	// before its staging duration has passed.
	ErrDelayNotElapsed = errors.New("guardkit: staging duration has not elapsed")

	// ErrInvalidState is returned for other state-machine violations, e.g.
	// applying a duration update while none is staged.
	ErrInvalidState = errors.New("guardkit: invalid state")

	// ErrConfig is returned for configuration errors such as storage key
	// prefix collisions between components.
	ErrConfig = errors.New("guardkit: invalid configuration")

	// ErrStorage is returned when the underlying state store fails.
	ErrStorage = errors.New("guardkit: storage error")
)

// Error wraps a sentinel error with additional context.
type Error struct {
	Err     error  // Underlying sentinel error
	Message string // Additional context
	Role    string // Role involved (if applicable)
	Feature string // Pausable feature involved (if applicable)
	Account string // Account the operation targeted (if applicable)
	Caller  string // Caller that triggered the error (if applicable)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a target error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new Error with context.
func NewError(err error, message string) *Error {
	return &Error{
		Err:     err,
		Message: message,
	}
}

// WithRole adds role information to the error.
func (e *Error) WithRole(role string) *Error {
	e.Role = role
	return e
}

// WithFeature adds pausable feature information to the error.
func (e *Error) WithFeature(feature string) *Error {
	e.Feature = feature
	return e
}

// WithAccount adds target account information to the error.
func (e *Error) WithAccount(account string) *Error {
	e.Account = account
	return e
}

// WithCaller adds caller information to the error.
func (e *Error) WithCaller(caller string) *Error {
	e.Caller = caller
	return e
}

// IsUnauthorized checks if an error is a permission denial.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsPaused checks if an error was caused by a paused feature.
func IsPaused(err error) bool {
	return errors.Is(err, ErrPaused)
}

// IsInvalidState checks if an error is a state-machine violation. This
// covers deploy-without-stage and not-yet-elapsed delays.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrNoStagedCode) ||
		errors.Is(err, ErrDelayNotElapsed)
}

// IsStorage checks if an error originated in the state store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

func storageErr(op string, err error) error {
	return NewError(ErrStorage, fmt.Sprintf("%s: %v", op, err))
}
