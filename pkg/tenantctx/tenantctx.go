package tenantctx

import "context"

type keyType string

const (
	TenantIDKey keyType = "tenant_id"
	UserIDKey   keyType = "user_id"
)

// WithTenantID stamps the resolved tenant onto the request context.
func WithTenantID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, TenantIDKey, id)
}

func TenantID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(TenantIDKey).(int64)
	return id, ok
}

// WithUserID stamps the authenticated user onto the request context.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(UserIDKey).(int64)
	return id, ok
}
