// Package facts defines the append-only fact stream that records every state
// change made to profiles, session stores, and avatar assets.
//
// Facts are appended with XADD in the same Lua script or MULTI/EXEC block as
// the mutation they describe, so a fact exists if and only if its change was
// applied. [EmitLua] is the shared script fragment for that purpose.
//
// # Architecture boundaries
//
// This package owns the fact model, the stream field layout, and stream reads.
// It does NOT decide which facts an operation emits; callers build them.
//
// # What this package must NOT do
//
//   - Import goProfile, session, or profile (no upward imports).
//   - Trim or rewrite stream entries.
package facts
