// Package authorization enforces fine-grained admin permissions with
// casbin, scoped per tenant. Module-level portal access is the access
// package's job; this layer guards individual administrative actions
// inside a portal.
package authorization

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid actor")
	ErrInvalidTenant = errors.New("invalid tenant")
	ErrInvalidObject = errors.New("invalid object")
	ErrInvalidAction = errors.New("invalid action")
)

type Service interface {
	// Authorize checks whether actor may perform action on object
	// within the tenant. Actor is "user:<id>" or "system".
	Authorize(ctx context.Context, actor string, tenantID string, object string, action string) error
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
