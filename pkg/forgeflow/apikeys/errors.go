package apikeys

import "errors"

var (
	// ErrMissingCredential means no bearer credential was supplied at all.
	ErrMissingCredential = errors.New("missing credential")

	// ErrInvalidOrExpired means no stored key matched the presented secret,
	// or the only matches were past their expiry. Callers get no further
	// detail than this.
	ErrInvalidOrExpired = errors.New("invalid or expired API key")

	// ErrIdentityMissing means a key matched but its owning user row is gone.
	ErrIdentityMissing = errors.New("user for API key not found")

	// ErrStoreUnavailable means the backing store could not be queried.
	ErrStoreUnavailable = errors.New("database not available")
)
