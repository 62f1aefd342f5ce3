package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/slogx"
)

// TokenDecoder verifies a raw bearer token and returns its contents.
type TokenDecoder interface {
	Decode(raw string) (authtoken.Token, error)
}

// RevocationChecker reports whether a still-valid token has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// AuthnMiddleware authenticates requests with a Bearer access token. Tokens
// of any other kind are rejected, so a refresh or challenge token can never
// open an authenticated endpoint. The revocation check fails closed.
func AuthnMiddleware(dec TokenDecoder, rev RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			tok, err := dec.Decode(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				return
			}
			if tok.Kind != authtoken.KindAccess {
				writeBearerError(w, "token verification failed")
				return
			}

			revoked, err := rev.IsRevoked(ctx, raw)
			if err != nil {
				log.Error("revocation check failed", "err", err)
				WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error": "service_unavailable",
				})
				return
			}
			if revoked {
				writeBearerError(w, "token revoked")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyUserID, tok.Principal.ID)
			ctx = context.WithValue(ctx, CtxKeyRole, tok.Principal.Role)
			ctx = context.WithValue(ctx, CtxKeyProjectID, tok.Principal.ProjectID)
			ctx = context.WithValue(ctx, CtxKeyToken, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
