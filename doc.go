// Package guardkit provides reusable access-control primitives for
// contract-like applications: role based permissioning, single ownership,
// feature-level pausing and delay-gated code upgrade staging.
//
// GuardKit assumes an execution model where the host serializes calls, each
// call carries a caller identity, and every mutation within one call is
// all-or-nothing. All guards are synchronous predicates evaluated strictly
// before any state mutation, so a denied call never leaves partial state
// behind.
//
// # Core Concepts
//
// Role: a named permission class defined at startup in a fixed order.
// Accounts holding a role are its "grantees"; each role has its own set of
// "admins" allowed to grant and revoke it. Super-admins are admins of every
// role.
//
// Feature: a named unit of functionality that can be paused independently.
// The reserved name "ALL" pauses every pausable feature at once.
//
// Staged code: a pending program payload that may only be deployed after a
// configurable staging duration has elapsed.
//
// All state lives in a Store, a small key-value interface with in-memory,
// Redis and Postgres (bun) implementations. Each contract instance owns one
// isolated store; component state is namespaced by configurable key
// prefixes.
//
// # Basic Usage
//
//	// 1. Define your roles (at application startup). Order is part of the
//	// persisted layout: append new roles, never reorder or remove.
//	registry := guardkit.NewRegistry().
//	    Role("PauseManager").
//	    Role("UnpauseManager").
//	    Role("Upgrader")
//
//	// 2. Create the contract aggregate over a store.
//	cfg := guardkit.DefaultConfig()
//	contract, err := guardkit.NewContract(cfg, guardkit.NewMemoryStore(), registry,
//	    guardkit.WithSelfID("counter.app"),
//	    guardkit.WithPauseRoles("PauseManager"),
//	    guardkit.WithUnpauseRoles("UnpauseManager"),
//	    guardkit.WithCodeStagers("Upgrader"),
//	    guardkit.WithCodeDeployers("Upgrader"),
//	)
//
//	// 3. Bootstrap permissions. The caller travels in the context.
//	ctx := guardkit.WithCaller(context.Background(), "counter.app")
//	contract.ACL().InitSuperAdmin(ctx, "root.app")
//
//	ctx = guardkit.WithCaller(context.Background(), "root.app")
//	contract.ACL().GrantRole(ctx, "PauseManager", "anna.app")
//
//	// 4. Guard operations before running business logic.
//	if err := contract.Pausable().IfNotPaused(ctx, "increase"); err != nil {
//	    return err // aborted, no state touched
//	}
//
// # Authorization Results
//
// Mutating operations return (changed bool, err error). ErrUnauthorized
// is reserved for permission denial; (false, nil) means the caller was
// authorized but nothing changed (idempotent no-op). Callers must not
// conflate the two: only denial aborts, and only effective changes emit
// events.
//
// # Events
//
// Every effective mutation emits one structured event (role granted,
// feature paused, code staged, ...) through the configured Emitter. The
// default emitter logs NEP-297 shaped "EVENT_JSON:" lines via log/slog.
// Events are fire-and-forget broadcasts, never control flow.
package guardkit
