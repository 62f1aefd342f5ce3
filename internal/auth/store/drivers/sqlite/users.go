package sqlite

import (
	"context"
	"database/sql"

	"github.com/tillhq/till/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, role, project_id, password_hash, email_verified,
	totp_secret, totp_enabled_at, created_at, updated_at`

func (r *usersRepo) scanUser(row *sql.Row) (domain.User, error) {
	var (
		u       domain.User
		secret  sql.NullString
		enabled sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Role, &u.ProjectID, &u.PasswordHash, &u.EmailVerified,
		&secret, &enabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.TOTPSecret = mapNullStringPtr(secret)
	u.TOTPEnabledAt = mapNullTimePtr(enabled)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, projectID, email string) (domain.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE project_id = ? AND email = ?`, projectID, email))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, role, project_id, password_hash, email_verified, totp_secret, totp_enabled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Role, u.ProjectID, u.PasswordHash, u.EmailVerified,
		mapOptionalString(u.TOTPSecret), mapOptionalTime(u.TOTPEnabledAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newHash, userID)
}

func (r *usersRepo) MarkEmailVerified(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET email_verified = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID)
}

func (r *usersRepo) UpdateTOTPSecret(ctx context.Context, userID, secret string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secret, userID)
}

func (r *usersRepo) EnableTOTP(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_enabled_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND totp_secret IS NOT NULL`,
		userID)
}

func (r *usersRepo) DisableTOTP(ctx context.Context, userID string) error {
	return r.exec(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		userID)
}

// exec runs a single-row mutation and maps "no rows touched" to ErrNotFound.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
