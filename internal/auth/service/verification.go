package service

import (
	"context"
	"crypto/subtle"
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

const verificationCodeDigits = 6

// VerificationService proves email ownership with short numeric codes. At
// most one code is active per (project, email); reissuing replaces it.
type VerificationService struct {
	Store      store.Store
	Dispatcher notify.Dispatcher

	CodeTTL        time.Duration
	ResendInterval time.Duration
	MaxAttempts    int
}

// Issue mints a fresh code, persists its fingerprint and dispatches it. The
// row is written before the dispatch so a delivery failure leaves a usable
// code behind for the resend path.
func (s *VerificationService) Issue(ctx context.Context, projectID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	code, err := cryptox.GenerateDigits(verificationCodeDigits)
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	now := time.Now()
	vc := domain.VerificationCode{
		ID:                idx.New().String(),
		ProjectID:         projectID,
		Email:             email,
		CodeHash:          cryptox.FingerprintToken(code),
		ExpiresAt:         now.Add(s.CodeTTL),
		AttemptsRemaining: s.MaxAttempts,
		LastSentAt:        now,
	}

	if err := s.Store.VerificationCodes().UpsertVerificationCode(ctx, vc); err != nil {
		return err
	}

	payload := map[string]string{
		"code": code,
		"ttl":  s.CodeTTL.String(),
	}
	if err := s.Dispatcher.Send(ctx, email, notify.TemplateVerificationCode, payload); err != nil {
		slogx.FromContext(ctx).Error("verification dispatch failed",
			slog.String("project_id", projectID),
			slog.Any("error", err),
		)
		return ErrDispatchFailed
	}

	return nil
}

// Resend reissues a code, rate-limited against the previous dispatch. A
// resend always generates a new code; the old one dies with the upsert.
func (s *VerificationService) Resend(ctx context.Context, projectID, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := s.Store.VerificationCodes().GetVerificationCode(ctx, projectID, email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err == nil && time.Since(existing.LastSentAt) < s.ResendInterval {
		return ErrRateLimited
	}

	return s.Issue(ctx, projectID, email)
}

// Verify burns one attempt per wrong guess and deletes the row once the
// guess budget is spent. A correct code consumes the row and marks the
// account's email verified when the account already exists.
func (s *VerificationService) Verify(ctx context.Context, projectID, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	vc, err := s.Store.VerificationCodes().GetVerificationCode(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return err
	}

	if time.Now().After(vc.ExpiresAt) {
		_ = s.Store.VerificationCodes().DeleteVerificationCode(ctx, vc.ID)
		return ErrExpired
	}

	guess := cryptox.FingerprintToken(code)
	if subtle.ConstantTimeCompare([]byte(guess), []byte(vc.CodeHash)) != 1 {
		remaining, err := s.Store.VerificationCodes().DecrementVerificationAttempts(ctx, vc.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if remaining <= 0 {
			_ = s.Store.VerificationCodes().DeleteVerificationCode(ctx, vc.ID)
			return ErrTooManyAttempts
		}
		return ErrInvalidCode
	}

	if err := s.Store.VerificationCodes().DeleteVerificationCode(ctx, vc.ID); err != nil {
		return err
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Pre-registration verification; nothing to flag yet.
			return nil
		}
		return err
	}
	return s.Store.Users().MarkEmailVerified(ctx, user.ID)
}
