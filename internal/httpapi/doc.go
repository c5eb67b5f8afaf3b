// Package httpapi serves the profile engine over HTTP with a chi router.
//
// The caller principal comes from the X-Principal header set by the
// authenticating gateway; admin routes take the capability as a bearer
// token. Keys are hex encoded on the wire. Engine errors map to status
// codes in statusFor.
package httpapi
