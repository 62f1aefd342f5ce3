package store

import (
	"context"
	"errors"
	"time"

	"github.com/tillhq/till/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today,
// postgres later) implement this. Sub-repositories keep concerns tidy and
// make it obvious when a call is running inside a transaction scope.
type Store interface {
	Users() Users
	RecoveryCodes() RecoveryCodes
	VerificationCodes() VerificationCodes
	ResetTokens() ResetTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. A non-nil error from fn rolls
	// back; nil commits. This is the recommended way to run multi-step
	// operations that must be atomic (reset redemption, recovery minting).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks a user up within a project. Email is unique per
	// project, not globally.
	GetUserByEmail(ctx context.Context, projectID, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// MarkEmailVerified flips email_verified for the user.
	MarkEmailVerified(ctx context.Context, userID string) error

	// UpdateTOTPSecret stores a pending enrollment secret.
	UpdateTOTPSecret(ctx context.Context, userID, secret string) error

	// EnableTOTP confirms enrollment by setting totp_enabled_at.
	EnableTOTP(ctx context.Context, userID string) error

	// DisableTOTP clears both the secret and the enabled timestamp.
	DisableTOTP(ctx context.Context, userID string) error
}

type RecoveryCodes interface {
	// CreateRecoveryCode stores one code hash for a user.
	CreateRecoveryCode(ctx context.Context, userID, codeHash string) error

	// ConsumeRecoveryCode marks an unused code as used and reports whether
	// one matched. The check-and-burn is a single guarded UPDATE so two
	// concurrent redemptions of the same code cannot both succeed.
	ConsumeRecoveryCode(ctx context.Context, userID, codeHash string) (bool, error)

	// DeleteUserRecoveryCodes removes all codes for a user (re-enroll, disable).
	DeleteUserRecoveryCodes(ctx context.Context, userID string) error

	// CountUnusedRecoveryCodes returns how many codes remain for a user.
	CountUnusedRecoveryCodes(ctx context.Context, userID string) (int, error)
}

type VerificationCodes interface {
	// UpsertVerificationCode replaces any existing code for (project, email)
	// so at most one is ever active.
	UpsertVerificationCode(ctx context.Context, vc domain.VerificationCode) error

	// GetVerificationCode returns the active code row for (project, email).
	GetVerificationCode(ctx context.Context, projectID, email string) (domain.VerificationCode, error)

	// DecrementVerificationAttempts burns one attempt and returns the count
	// remaining after the decrement.
	DecrementVerificationAttempts(ctx context.Context, id string) (int, error)

	// DeleteVerificationCode removes the row after success or exhaustion.
	DeleteVerificationCode(ctx context.Context, id string) error

	// DeleteExpiredVerificationCodes is housekeeping.
	DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) error
}

type ResetTokens interface {
	// CreateResetToken stores a freshly minted token hash.
	CreateResetToken(ctx context.Context, rt domain.ResetToken) error

	// GetResetTokenByHash fetches a token by its hashed value when redeeming.
	GetResetTokenByHash(ctx context.Context, hash string) (domain.ResetToken, error)

	// MarkResetTokenUsed flips used=1 only if it was 0, returning ErrNotFound
	// when the token was already consumed. Run inside the redemption tx.
	MarkResetTokenUsed(ctx context.Context, id string) error

	// DeleteExpiredResetTokens is housekeeping.
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) error
}
