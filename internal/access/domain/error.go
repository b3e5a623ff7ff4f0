package domain

import "errors"

var (
	ErrUnknownModule    = errors.New("unknown module")
	ErrUnknownEffect    = errors.New("unknown override effect")
	ErrOverrideNotFound = errors.New("override not found")
)
