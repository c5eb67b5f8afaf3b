package goProfile

import "errors"

var (
	// ErrUnauthorized is returned when the ownership or capability gate rejects the caller.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidLength is returned when a nickname, bio, URL, metadata field, or key is outside its bounds.
	ErrInvalidLength = errors.New("invalid length")
	// ErrInvalidEnumValue is returned for an unrecognized membership tier.
	ErrInvalidEnumValue = errors.New("invalid enum value")
	// ErrDuplicateSession is returned when a session key already exists in the store.
	ErrDuplicateSession = errors.New("duplicate session key")
	// ErrDuplicateKey is an alias of [ErrDuplicateSession].
	ErrDuplicateKey = ErrDuplicateSession
	// ErrProfileNotFound is returned when a profile id does not resolve.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrSessionStoreNotFound is returned when a session store id does not resolve.
	ErrSessionStoreNotFound = errors.New("session store not found")
	// ErrAssetNotFound is returned when an avatar asset id does not resolve.
	ErrAssetNotFound = errors.New("avatar asset not found")
	// ErrInvalidPrincipal is returned for an empty or oversized principal.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrInvalidKeyEncoding is returned when a transported key cannot be decoded.
	ErrInvalidKeyEncoding = errors.New("invalid key encoding")
	// ErrAdminAlreadyBootstrapped is returned on every BootstrapAdmin call after the first.
	ErrAdminAlreadyBootstrapped = errors.New("admin capability already bootstrapped")
	// ErrStorageUnavailable wraps backend (Redis) failures.
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	// ErrRateLimited is returned when the registration throttle rejects the client.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is returned when an Engine was not produced by [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)
