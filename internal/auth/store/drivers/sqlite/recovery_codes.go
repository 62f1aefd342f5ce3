package sqlite

import (
	"context"
)

type recoveryCodesRepo struct {
	db dbtx
}

func (r *recoveryCodesRepo) CreateRecoveryCode(ctx context.Context, userID, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recovery_codes (id, user_id, code_hash)
		VALUES (lower(hex(randomblob(16))), ?, ?)`,
		userID, codeHash,
	)
	return err
}

func (r *recoveryCodesRepo) ConsumeRecoveryCode(ctx context.Context, userID, codeHash string) (bool, error) {
	// Single guarded UPDATE: only one concurrent redemption can win the row.
	res, err := r.db.ExecContext(ctx, `
		UPDATE recovery_codes SET used_at = CURRENT_TIMESTAMP
		WHERE id = (
			SELECT id FROM recovery_codes
			WHERE user_id = ? AND code_hash = ? AND used_at IS NULL
			LIMIT 1
		)`,
		userID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *recoveryCodesRepo) DeleteUserRecoveryCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE user_id = ?`, userID)
	return err
}

func (r *recoveryCodesRepo) CountUnusedRecoveryCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE user_id = ? AND used_at IS NULL`,
		userID,
	).Scan(&count)
	return count, err
}
