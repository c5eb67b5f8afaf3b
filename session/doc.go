// Package session provides the Redis-backed per-owner session stores and the
// compact binary encoding of session entries.
//
// # Binary encoding
//
// An entry is a fixed 49-byte record: a version byte, the 32-byte public key,
// then created_at and expires_at as big-endian int64 milliseconds. The Lua
// cleanup script reads expires_at directly from the stored bytes.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Entry] model. It
// enforces store ownership inside its scripts but does NOT validate key
// lengths from untrusted input, verify capabilities, or touch profiles;
// those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goProfile, profile, or capability (no upward imports).
//   - Delete entries from a read path.
//   - Decrement the session counter.
package session
