package domain

import "time"

// User is a staff account scoped to a single project (shop). The same email
// may exist once per project, so lookups always carry the project ID.
type User struct {
	ID            string
	Email         string
	Role          string
	ProjectID     string
	PasswordHash  string
	EmailVerified bool
	TOTPSecret    *string    // base32 secret, set while enrolled or enrolling
	TOTPEnabledAt *time.Time // nil until the user confirms enrollment
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TwoFactorEnabled reports whether a login must go through the second-factor
// challenge. A stored secret alone is not enough; enrollment must be confirmed.
func (u User) TwoFactorEnabled() bool {
	return u.TOTPSecret != nil && u.TOTPEnabledAt != nil
}
