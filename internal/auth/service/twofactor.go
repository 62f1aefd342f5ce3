package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/tillhq/till/internal/auth/blacklist"
	"github.com/tillhq/till/internal/auth/domain"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/cryptox"
	"github.com/tillhq/till/pkg/slogx"
)

const (
	// MaxChallengeAttempts is the failure budget per challenge token before
	// it is burned and the user must log in again.
	MaxChallengeAttempts = 5

	recoveryCodeCount = 10
	recoveryCodeBytes = cryptox.TokenSize128
)

// TwoFactorService completes and manages TOTP second factors.
type TwoFactorService struct {
	Codec     *authtoken.Codec
	Store     store.Store
	Blacklist blacklist.Blacklist
	Attempts  blacklist.Attempts
	Sessions  *SessionService

	// Issuer is the label shown in authenticator apps.
	Issuer string
}

// Verify completes a pending login challenge. The challenge token is single
// use: it burns on success, on attempt exhaustion, and on expiry.
func (s *TwoFactorService) Verify(ctx context.Context, challengeRaw, method, code string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)

	tok, err := s.Codec.Decode(challengeRaw)
	if err != nil || tok.Kind != authtoken.KindTwoFactorTemp {
		return nil, ErrInvalidToken
	}

	revoked, err := s.Blacklist.IsRevoked(ctx, challengeRaw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	user, err := s.Store.Users().GetUserByID(ctx, tok.Principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.TwoFactorEnabled() {
		return nil, ErrTwoFactorNotEnabled
	}

	ok, err := s.checkCode(ctx, user, method, code)
	if err != nil {
		return nil, err
	}

	attemptsKey := "2fa:" + cryptox.FingerprintToken(challengeRaw)

	if !ok {
		window := time.Until(tok.ExpiresAt)
		count, err := s.Attempts.Increment(ctx, attemptsKey, window)
		if err != nil {
			return nil, err
		}
		if count >= MaxChallengeAttempts {
			// Burn the challenge; the user has to present a password again.
			if err := s.Blacklist.Revoke(ctx, challengeRaw, tok.ExpiresAt); err != nil {
				return nil, err
			}
			l.Warn("challenge burned after repeated failures",
				slog.String("user_id", user.ID),
				slog.Int("attempts", count),
			)
			return nil, ErrTooManyAttempts
		}
		l.Info("second factor rejected",
			slog.String("user_id", user.ID),
			slog.String("method", method),
			slog.Int("attempts", count),
		)
		return nil, ErrInvalidCode
	}

	// Success burns the challenge token too. The atomic insert doubles as
	// the single-use check: a concurrent verification of the same challenge
	// loses the race and gets nothing.
	first, err := s.Blacklist.RevokeOnce(ctx, challengeRaw, tok.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrInvalidToken
	}
	_ = s.Attempts.Clear(ctx, attemptsKey)

	return s.Sessions.IssueSession(user)
}

func (s *TwoFactorService) checkCode(ctx context.Context, user domain.User, method, code string) (bool, error) {
	code = strings.TrimSpace(code)

	switch method {
	case "totp":
		return validateTOTP(code, *user.TOTPSecret), nil

	case "recovery_code":
		hash := cryptox.FingerprintToken(code)
		return s.Store.RecoveryCodes().ConsumeRecoveryCode(ctx, user.ID, hash)

	default:
		return false, ErrInvalidCode
	}
}

// Enroll generates a TOTP secret for the user and returns the otpauth URL.
// The second factor stays off until Enable confirms the user has the secret.
func (s *TwoFactorService) Enroll(ctx context.Context, userID string) (domain.TwoFactorEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}
	if user.TwoFactorEnabled() {
		return domain.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("generate totp key: %w", err)
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return domain.TwoFactorEnrollment{}, err
	}

	return domain.TwoFactorEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Email,
	}, nil
}

// Enable confirms enrollment with a live TOTP code, flips the second factor
// on, and mints the recovery codes. The plaintext codes are returned exactly
// once; only fingerprints are stored.
func (s *TwoFactorService) Enable(ctx context.Context, userID, code string) ([]string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled() {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return nil, ErrTwoFactorNotEnabled
	}

	if !validateTOTP(strings.TrimSpace(code), *user.TOTPSecret) {
		return nil, ErrInvalidCode
	}

	codes := make([]string, recoveryCodeCount)
	for i := range codes {
		c, err := cryptox.GenerateToken(recoveryCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		codes[i] = c
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, c := range codes {
			if err := tx.RecoveryCodes().CreateRecoveryCode(ctx, userID, cryptox.FingerprintToken(c)); err != nil {
				return err
			}
		}
		return tx.Users().EnableTOTP(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return codes, nil
}

// Disable turns the second factor off. The caller is already holding a valid
// access token; we still demand a live code so a hijacked session cannot
// silently strip the account's protection.
func (s *TwoFactorService) Disable(ctx context.Context, userID, method, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}

	ok, err := s.checkCode(ctx, user, method, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().DeleteUserRecoveryCodes(ctx, userID); err != nil {
			return err
		}
		return tx.Users().DisableTOTP(ctx, userID)
	})
}

// validateTOTP accepts one 30s step of clock skew either side, so a code
// typed at the boundary still lands.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
