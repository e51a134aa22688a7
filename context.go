package guardkit

import (
	"context"
	"time"
)

// Context keys for GuardKit values.
type contextKey string

const (
	contextKeyCaller    contextKey = "guardkit:caller"
	contextKeySelf      contextKey = "guardkit:self"
	contextKeyBlockTime contextKey = "guardkit:block_time"
)

// WithCaller adds the caller account to the context. This is the identity
// the host attached to the inbound call; every guard reads it from here.
func WithCaller(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, contextKeyCaller, account)
}

// Caller retrieves the caller account from context.
// Returns empty string if not set.
func Caller(ctx context.Context) string {
	if v := ctx.Value(contextKeyCaller); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// MustCaller retrieves the caller account from context.
// Panics if not set.
func MustCaller(ctx context.Context) string {
	caller := Caller(ctx)
	if caller == "" {
		panic("guardkit: caller not in context")
	}
	return caller
}

// WithSelf adds the contract's own account identity to the context. It
// overrides the identity configured on the components for the duration of
// the call, which is mainly useful in tests.
func WithSelf(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, contextKeySelf, account)
}

// Self retrieves the contract's own account identity from context.
// Returns empty string if not set.
func Self(ctx context.Context) string {
	if v := ctx.Value(contextKeySelf); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WithBlockTime attaches the host-supplied timestamp of the current call to
// the context. Delay gates in the upgradable component compare against this
// value rather than reading the system clock mid-call.
func WithBlockTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyBlockTime, t)
}

// BlockTime retrieves the host-supplied call timestamp from context,
// falling back to time.Now() when the host supplied none.
func BlockTime(ctx context.Context) time.Time {
	if v := ctx.Value(contextKeyBlockTime); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Now()
}

// CallContext holds all call-scoped values at once.
type CallContext struct {
	Caller    string
	Self      string
	BlockTime time.Time
}

// WithCallContext attaches all call-scoped values to the context at once.
func WithCallContext(ctx context.Context, cc CallContext) context.Context {
	if cc.Caller != "" {
		ctx = WithCaller(ctx, cc.Caller)
	}
	if cc.Self != "" {
		ctx = WithSelf(ctx, cc.Self)
	}
	if !cc.BlockTime.IsZero() {
		ctx = WithBlockTime(ctx, cc.BlockTime)
	}
	return ctx
}
