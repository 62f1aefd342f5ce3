package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tillhq/till/internal/auth/domain"
	"github.com/tillhq/till/internal/auth/notify"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/cryptox"
	"github.com/tillhq/till/pkg/idx"
	"github.com/tillhq/till/pkg/slogx"
)

const minPasswordLength = 8

// ResetService handles forgotten passwords with single-use opaque tokens
// delivered out of band.
type ResetService struct {
	Store      store.Store
	Dispatcher notify.Dispatcher

	TokenTTL time.Duration

	// ResetURL is the page the emailed link points at; the token rides in
	// the "token" query parameter.
	ResetURL string
}

// Request mints a reset token for the account, if it exists. Unknown emails
// succeed silently so the endpoint cannot be used to enumerate accounts.
func (s *ResetService) Request(ctx context.Context, projectID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	rt := domain.ResetToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: time.Now().Add(s.TokenTTL),
	}
	if err := s.Store.ResetTokens().CreateResetToken(ctx, rt); err != nil {
		return err
	}

	payload := map[string]string{
		"link": s.ResetURL + "?token=" + opaque,
		"ttl":  s.TokenTTL.String(),
	}
	if err := s.Dispatcher.Send(ctx, email, notify.TemplatePasswordReset, payload); err != nil {
		slogx.FromContext(ctx).Error("reset dispatch failed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return ErrDispatchFailed
	}

	return nil
}

// Redeem consumes a reset token and sets the new password. The used flag is
// flipped with a guarded UPDATE inside the transaction, so a token presented
// twice fails the second time no matter how the requests interleave.
func (s *ResetService) Redeem(ctx context.Context, opaque, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	fp := cryptox.FingerprintToken(strings.TrimSpace(opaque))

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.ResetTokens().GetResetTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}

		// Used wins over expired: a replayed token always reads as consumed.
		if rt.Used {
			return ErrAlreadyUsed
		}
		if time.Now().After(rt.ExpiresAt) {
			return ErrExpired
		}

		if err := tx.ResetTokens().MarkResetTokenUsed(ctx, rt.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAlreadyUsed
			}
			return err
		}

		return tx.Users().UpdatePasswordHash(ctx, rt.UserID, hash)
	})
}
