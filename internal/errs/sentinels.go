// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound indicates no user record exists for the username.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrItemNotFound indicates none of the user's linked items has the requested item_id.
	ErrItemNotFound = fmt.Errorf("item %w", ErrNotFound)

	// ErrValidation indicates missing or malformed caller input.
	ErrValidation = errors.New("validation")

	// ErrUnauthorized indicates a session mismatch.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadCredentials indicates a wrong password on login.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrAlreadyExists indicates a unique constraint violation (username taken, item already linked).
	ErrAlreadyExists = errors.New("already exists")

	// ErrMalformedItemRecord indicates a stored item field that cannot be decoded.
	ErrMalformedItemRecord = errors.New("malformed item record")

	// ErrProvider indicates a failure reported by (or while reaching) the financial-data provider.
	ErrProvider = errors.New("provider error")

	// ErrPersistence indicates the credential store could not commit a write.
	ErrPersistence = errors.New("persistence error")
)
