package domain

import "time"

// RecoveryCode is a single-use fallback credential for the second factor.
// Ten are minted when two-factor auth is enabled; each burns on use.
type RecoveryCode struct {
	ID        string
	UserID    string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}

// TwoFactorEnrollment is returned when a user begins TOTP enrollment.
type TwoFactorEnrollment struct {
	Secret  string `json:"secret"`  // base32 secret for manual entry
	URL     string `json:"url"`     // otpauth:// URL for QR rendering
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
