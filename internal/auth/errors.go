package auth

import "errors"

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrWeakPassword         = errors.New("password must be at least 8 characters")
	ErrInvalidName          = errors.New("name must contain only letters and be at least 2 characters")
	ErrInvalidPhone         = errors.New("phone number must have exactly 10 digits")
	ErrInvalidRole          = errors.New("invalid role")
	ErrProviderUnavailable  = errors.New("identity provider unavailable")
	ErrProfileLookupFailure = errors.New("profile lookup failed")
	ErrProfileCreateFailure = errors.New("profile creation failed")
	ErrProviderError        = errors.New("identity provider returned an error")
	ErrStoreCorrupt         = errors.New("stored session is corrupt")
)
