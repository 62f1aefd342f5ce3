package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID    ctxKey = "user_id"
	CtxKeyRole      ctxKey = "role"
	CtxKeyProjectID ctxKey = "project_id"
	CtxKeyToken     ctxKey = "token" // raw bearer token, for logout revocation
)

// UserIDFromContext returns the authenticated user's ID, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the authenticated user's role, if any.
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyRole).(string); ok {
		return v
	}
	return ""
}

// ProjectIDFromContext returns the authenticated user's project, if any.
func ProjectIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyProjectID).(string); ok {
		return v
	}
	return ""
}

// RawTokenFromContext returns the bearer token the request authenticated with.
func RawTokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyToken).(string); ok {
		return v
	}
	return ""
}
