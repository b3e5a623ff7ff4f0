package domain

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrInvalidTenant    = errors.New("invalid tenant")
	ErrInvalidName      = errors.New("invalid tenant name")
	ErrSlugTaken        = errors.New("tenant slug already in use")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrSettingsNotFound = errors.New("tenant settings not found")
)
