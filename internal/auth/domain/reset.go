package domain

import "time"

// ResetToken is a single-use password-reset grant delivered out of band.
type ResetToken struct {
	ID        string
	UserID    string
	TokenHash string // fingerprint of the opaque token, never the token
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}
