package identity

import "errors"

var (
	// ErrNotFound signals an absent row. Resolution treats it as "fall through".
	ErrNotFound = errors.New("identity: not found")
	// ErrAlreadyExists is returned by Create when a profile already exists.
	ErrAlreadyExists = errors.New("identity: already exists")
	// ErrInvalidToken marks a stale or rejected access token.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrSessionExpired means the token could not be refreshed; callers redirect to sign-in.
	ErrSessionExpired = errors.New("identity: session expired")
	// ErrAuthFailed wraps unexpected lookup failures during resolution.
	ErrAuthFailed = errors.New("identity: authentication failed")
)
