package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tillhq/till/internal/auth/blacklist"
	"github.com/tillhq/till/internal/auth/domain"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/authtoken"
	"github.com/tillhq/till/pkg/cryptox"
	"github.com/tillhq/till/pkg/slogx"
)

// SessionService owns the credential lifecycle: password login, the
// two-factor challenge handoff, refresh rotation and logout.
type SessionService struct {
	Codec     *authtoken.Codec
	Store     store.Store
	Blacklist blacklist.Blacklist

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// ChallengeTTL bounds the window between password success and the
	// second-factor code.
	ChallengeTTL time.Duration
}

// Login verifies a password and either issues a session or, when the account
// has a second factor enabled, returns a ChallengeRequiredError carrying the
// short-lived challenge token.
//
// Unknown emails burn a hash anyway so response timing does not reveal
// whether the account exists.
func (s *SessionService) Login(ctx context.Context, projectID, email, password string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, projectID, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.DummyVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("password verification failed", slog.String("user_id", user.ID))
		return nil, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled() {
		challenge, err := s.Codec.Issue(principal(user), authtoken.KindTwoFactorTemp, s.ChallengeTTL)
		if err != nil {
			return nil, err
		}
		return nil, &domain.ChallengeRequiredError{
			ChallengeToken: challenge.Raw,
			Methods:        []string{"totp", "recovery_code"},
			ExpiresIn:      int64(s.ChallengeTTL.Seconds()),
		}
	}

	return s.IssueSession(user)
}

// IssueSession mints a fresh access/refresh pair for an authenticated user.
func (s *SessionService) IssueSession(user domain.User) (*domain.Session, error) {
	access, err := s.Codec.Issue(principal(user), authtoken.KindAccess, s.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := s.Codec.Issue(principal(user), authtoken.KindRefresh, s.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &domain.Session{
		AccessToken:  access.Raw,
		RefreshToken: refresh.Raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Refresh rotates a refresh token: the presented token is retired and a new
// pair issued. A token that was already rotated reads as revoked, which is
// the replay signal for a stolen refresh token.
func (s *SessionService) Refresh(ctx context.Context, rawRefresh string) (*domain.Session, error) {
	l := slogx.FromContext(ctx)

	tok, err := s.Codec.Decode(rawRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if tok.Kind != authtoken.KindRefresh {
		return nil, ErrInvalidToken
	}

	// The registry itself is the single-use gate: retiring the token and
	// checking it was not already retired is one atomic insert, so two
	// concurrent presentations can never both mint successors, even across
	// instances sharing a Redis registry.
	first, err := s.Blacklist.RevokeOnce(ctx, rawRefresh, tok.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if !first {
		l.Warn("refresh token replayed after rotation",
			slog.String("user_id", tok.Principal.ID),
			slog.String("project_id", tok.Principal.ProjectID),
		)
		return nil, ErrTokenRevoked
	}

	// Re-fetch so role or password changes since issue time take effect.
	user, err := s.Store.Users().GetUserByID(ctx, tok.Principal.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return s.IssueSession(user)
}

// Logout revokes both tokens of a session. It is idempotent and best-effort:
// undecodable tokens are skipped and registry hiccups are logged, because the
// client is discarding its copies either way.
func (s *SessionService) Logout(ctx context.Context, rawAccess, rawRefresh string) {
	l := slogx.FromContext(ctx)

	for _, raw := range []string{rawAccess, rawRefresh} {
		if raw == "" {
			continue
		}
		tok, err := s.Codec.Decode(raw)
		if err != nil {
			continue
		}
		if err := s.Blacklist.Revoke(ctx, raw, tok.ExpiresAt); err != nil {
			l.Warn("logout revocation failed",
				slog.String("user_id", tok.Principal.ID),
				slog.Any("error", err),
			)
		}
	}
}

func principal(u domain.User) authtoken.Principal {
	return authtoken.Principal{
		ID:        u.ID,
		Role:      u.Role,
		ProjectID: u.ProjectID,
	}
}
