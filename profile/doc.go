// Package profile stores user profile records and avatar assets in Redis.
//
// Each mutation runs as one Lua script that checks existence and the
// ownership gate, applies the change, raises updated_at to at least the
// supplied clock value, and appends its facts.
//
// The avatar is a tagged union written only through Avatar.fields, so setting
// one variant always replaces the other.
//
// # What this package must NOT do
//
//   - Import goProfile, session, or capability (no upward imports).
//   - Validate field lengths; callers do that before any Redis call.
//   - Verify capability tokens. [CapabilityGate] trusts its caller.
package profile
