package authtoken

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// claims is the wire payload. The field names form the API contract that
// external controllers rely on: { id, role, projectId, kind, exp }.
type claims struct {
	jwt.RegisteredClaims

	UserID    string `json:"id"`
	Role      string `json:"role"`
	ProjectID string `json:"projectId"`
	Kind      Kind   `json:"kind"`
}

// Codec signs and verifies tokens with a process-wide symmetric secret.
// The secret is loaded once at startup; runtime rotation is out of scope.
// Codec is stateless and safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec builds a Codec. The secret must be non-empty; short secrets are a
// deployment mistake we refuse to paper over.
func NewCodec(secret, issuer string) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("authtoken: signing secret must be at least 32 bytes")
	}
	return &Codec{secret: []byte(secret), issuer: issuer}, nil
}

// Issue signs a token of the given kind for the principal. Expiry is a Unix
// timestamp in seconds, ttl from now.
func (c *Codec) Issue(p Principal, kind Kind, ttl time.Duration) (Token, error) {
	if !kind.Valid() {
		return Token{}, ErrInvalidToken
	}

	now := time.Now().UTC()
	exp := now.Add(ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        newJTI(),
		},
		UserID:    p.ID,
		Role:      p.Role,
		ProjectID: p.ProjectID,
		Kind:      kind,
	})

	raw, err := t.SignedString(c.secret)
	if err != nil {
		return Token{}, err
	}

	return Token{
		Principal: p,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: exp,
		Raw:       raw,
	}, nil
}

// Decode verifies signature and expiry and returns the embedded token.
// Every failure mode collapses into ErrInvalidToken.
func (c *Codec) Decode(raw string) (Token, error) {
	var cl claims

	parsed, err := jwt.ParseWithClaims(raw, &cl,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Token{}, ErrInvalidToken
	}

	if !cl.Kind.Valid() || cl.UserID == "" {
		return Token{}, ErrInvalidToken
	}

	tok := Token{
		Principal: Principal{
			ID:        cl.UserID,
			Role:      cl.Role,
			ProjectID: cl.ProjectID,
		},
		Kind: cl.Kind,
		Raw:  raw,
	}
	if cl.IssuedAt != nil {
		tok.IssuedAt = cl.IssuedAt.Time
	}
	if cl.ExpiresAt != nil {
		tok.ExpiresAt = cl.ExpiresAt.Time
	}

	return tok, nil
}

// newJTI returns a URL-safe random identifier for the "jti" claim so two
// tokens issued within the same second never share a raw value.
func newJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
