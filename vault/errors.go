package vault

import "github.com/pkg/errors"

var (
	// ErrIntegrity is returned when a collection's digest doesn't match its
	// items and timestamp. Items are either missing or have been tampered
	// with.
	ErrIntegrity = errors.New("vault: hmac of items does not match")

	// ErrMissingIntegrityFields is returned when a collection that must carry
	// a digest and timestamp is missing either.
	ErrMissingIntegrityFields = errors.New("vault: lastModified and/or hmacOfItems missing")
)
