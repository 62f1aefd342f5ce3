package domain

import "time"

// VerificationCode is a pending email-ownership check. At most one row exists
// per (project, email); issuing a new code replaces any previous one.
type VerificationCode struct {
	ID                string
	ProjectID         string
	Email             string
	CodeHash          string // fingerprint of the 6-digit code, never the code
	ExpiresAt         time.Time
	AttemptsRemaining int
	LastSentAt        time.Time
	CreatedAt         time.Time
}
