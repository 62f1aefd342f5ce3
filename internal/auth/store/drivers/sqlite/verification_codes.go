package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tillhq/till/internal/auth/domain"
)

type verificationCodesRepo struct {
	db dbtx
}

func (r *verificationCodesRepo) UpsertVerificationCode(ctx context.Context, vc domain.VerificationCode) error {
	// One active code per (project, email): a fresh issue replaces the old
	// row entirely, resetting hash, expiry and attempt budget together.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_codes (id, project_id, email, code_hash, expires_at, attempts_remaining, last_sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, email) DO UPDATE SET
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			attempts_remaining = excluded.attempts_remaining,
			last_sent_at = excluded.last_sent_at`,
		vc.ID, vc.ProjectID, vc.Email, vc.CodeHash, vc.ExpiresAt, vc.AttemptsRemaining, vc.LastSentAt,
	)
	return err
}

func (r *verificationCodesRepo) GetVerificationCode(ctx context.Context, projectID, email string) (domain.VerificationCode, error) {
	var vc domain.VerificationCode
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, email, code_hash, expires_at, attempts_remaining, last_sent_at, created_at
		FROM verification_codes
		WHERE project_id = ? AND email = ?`,
		projectID, email,
	).Scan(&vc.ID, &vc.ProjectID, &vc.Email, &vc.CodeHash, &vc.ExpiresAt,
		&vc.AttemptsRemaining, &vc.LastSentAt, &vc.CreatedAt)
	if err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	return vc, nil
}

func (r *verificationCodesRepo) DecrementVerificationAttempts(ctx context.Context, id string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE verification_codes SET attempts_remaining = attempts_remaining - 1
		WHERE id = ? AND attempts_remaining > 0`,
		id,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, mapNotFound(sql.ErrNoRows)
	}

	var remaining int
	err = r.db.QueryRowContext(ctx,
		`SELECT attempts_remaining FROM verification_codes WHERE id = ?`, id,
	).Scan(&remaining)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return remaining, nil
}

func (r *verificationCodesRepo) DeleteVerificationCode(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE id = ?`, id)
	return err
}

func (r *verificationCodesRepo) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE expires_at < ?`, now)
	return err
}
