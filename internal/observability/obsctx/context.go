// Package obsctx carries request-scoped correlation values.
package obsctx

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type tenantIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithTenantID stores the resolved tenant id in the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey{}, strings.TrimSpace(tenantID))
}

// TenantIDFromContext returns the tenant id, or "".
func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(tenantIDKey{}).(string)
	return id
}

// WithActor stores the acting principal in the context.
func WithActor(ctx context.Context, kind, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{kind: strings.TrimSpace(kind), id: strings.TrimSpace(id)})
}

// ActorFromContext returns the actor type and id, or empty strings.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actorKey{}).(actor)
	return a.kind, a.id
}
