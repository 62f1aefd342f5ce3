// Package authtoken signs and verifies the compact bearer tokens used across
// the Till platform. Tokens are self-contained HS256 JWTs carrying the
// authenticated principal and a kind tag; validity is signature + expiry,
// revocation lives elsewhere.
package authtoken

import (
	"errors"
	"time"
)

// Kind tags what a token may be used for. Protected endpoints accept only
// KindAccess; a temporary two-factor token is rejected there even when its
// signature and expiry check out.
type Kind string

const (
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindTwoFactorTemp Kind = "two_factor_temp"
)

// Valid reports whether k is one of the known token kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindTwoFactorTemp:
		return true
	}
	return false
}

// Principal is the authenticated identity embedded in every issued token.
// It is immutable once embedded; the credential store remains the mutable
// source of truth.
type Principal struct {
	ID        string
	Role      string
	ProjectID string
}

// Token is a decoded bearer token. Raw holds the exact wire string, which is
// also the token's identity for blacklist lookups.
type Token struct {
	Principal Principal
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
	Raw       string
}

// ErrInvalidToken covers a bad signature, malformed payload, unknown kind,
// or an expired token. Callers never learn which.
var ErrInvalidToken = errors.New("authtoken: invalid token")
