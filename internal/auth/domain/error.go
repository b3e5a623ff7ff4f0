package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrInvalidSession     = errors.New("invalid session")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrIdentityExists     = errors.New("identity already linked")
	ErrLastIdentity       = errors.New("cannot unlink the last identity")
)
