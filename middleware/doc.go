// Package middleware exposes HTTP middleware that carries request identity
// into goProfile.Engine calls.
//
// # Middleware
//
//   - [Caller] reads the X-Principal header and client address into the context.
//   - [RequireCaller] rejects anonymous requests.
//   - [RequireAdminCap] verifies the bearer admin capability.
//
// # What this package must NOT do
//
//   - Parse or sign capability tokens directly (delegates to Engine).
//   - Access Redis.
//   - Decide ownership. Owner checks run inside Engine operations.
package middleware
