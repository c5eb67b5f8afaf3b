// Package goProfile manages user profiles, per-owner session stores, and
// capability-gated admin operations on top of Redis.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goProfile is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (Profile, SessionInfo, AdminCap, etc.). Record layout and atomic scripts live in the
// profile and session packages, fact encoding in facts, token signing in capability, and
// throttling and audit dispatch under internal/.
//
// # Authorization
//
// Owner-gated operations read the caller from the context ([WithCaller]) and the
// ownership check runs inside the same Redis script that applies the change. Admin
// operations take an [AdminCap]; any capability whose signature verifies is accepted.
//
// # Atomicity
//
// Each mutation is one Lua script, or one MULTI/EXEC for [Engine.Register], that checks
// preconditions, writes state, and appends facts to the fact stream. Input bounds are
// checked before any Redis call.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Delete session entries on validation.
//   - Import any sub-package that re-imports goProfile (no import cycles).
package goProfile
