package tenant

import "context"

type contextKey int

const (
	tenantIDKey contextKey = iota
	tenantInfoKey
)

// WithID returns a context carrying the resolved tenant id. Downstream
// code (stores, audit, metrics) reads it with IDFromContext instead of
// threading the id through every signature.
func WithID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// IDFromContext returns the tenant id set by WithID, if any.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantIDKey).(string)
	return id, ok && id != ""
}

// WithInfo attaches the full tenant record alongside the id.
func WithInfo(ctx context.Context, info *Info) context.Context {
	ctx = WithID(ctx, info.ID)
	return context.WithValue(ctx, tenantInfoKey, info)
}

// InfoFromContext returns the tenant record set by WithInfo, if any.
func InfoFromContext(ctx context.Context) (*Info, bool) {
	info, ok := ctx.Value(tenantInfoKey).(*Info)
	return info, ok
}
