// Package auditcontext carries request-scoped attribution for audit
// entries: client address, user agent, request id and the acting
// principal. Values are attached by HTTP middleware and read by the
// audit service.
package auditcontext

import "context"

type keyType string

const (
	ipAddressKey keyType = "audit_ip_address"
	userAgentKey keyType = "audit_user_agent"
	requestIDKey keyType = "audit_request_id"
	actorKey     keyType = "audit_actor"
)

// Actor identifies the principal behind an audited action.
type Actor struct {
	Type string
	ID   string
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	if ip == "" {
		return ctx
	}
	return context.WithValue(ctx, ipAddressKey, ip)
}

func IPAddressFromContext(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(ipAddressKey).(string)
	return ip, ok && ip != ""
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	if ua == "" {
		return ctx
	}
	return context.WithValue(ctx, userAgentKey, ua)
}

func UserAgentFromContext(ctx context.Context) (string, bool) {
	ua, ok := ctx.Value(userAgentKey).(string)
	return ua, ok && ua != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok && id != ""
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if actorType == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, Actor{Type: actorType, ID: actorID})
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok && actor.Type != ""
}
