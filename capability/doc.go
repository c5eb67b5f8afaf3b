// Package capability signs and verifies the bearer tokens that stand for an
// admin capability.
//
// A token is a JWT carrying a unique id (jti), the service issuer (iss), the
// principal that minted it (by), and the holder (sub). Tokens never expire
// and there is no registry: possession of a token whose signature verifies is
// the whole authorization check.
package capability
