package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tillhq/till/internal/auth/domain"
	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/pkg/httpx"
	"github.com/tillhq/till/pkg/slogx"
)

// SessionHandler serves login, refresh and logout.
type SessionHandler struct {
	Sessions *service.SessionService
}

type loginRequest struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// HandleLogin serves POST /v1/auth/login.
//
// Success returns the session pair. An account with a second factor enabled
// gets 401 with challenge_required and the challenge token instead.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		decodeError(w)
		return
	}
	if req.Email == "" || req.Password == "" || req.ProjectID == "" {
		decodeError(w)
		return
	}

	sess, err := h.Sessions.Login(r.Context(), req.ProjectID, req.Email, req.Password)
	if err != nil {
		var challenge *domain.ChallengeRequiredError
		if errors.As(err, &challenge) {
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
				"error":           "challenge_required",
				"challenge_token": challenge.ChallengeToken,
				"methods":         challenge.Methods,
				"expires_in":      challenge.ExpiresIn,
			})
			return
		}
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sess)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh serves POST /v1/auth/refresh.
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		decodeError(w)
		return
	}

	sess, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidToken) && !errors.Is(err, service.ErrTokenRevoked) {
			slogx.FromContext(r.Context()).Error("refresh failed", "err", err)
		}
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sess)
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleLogout serves POST /v1/auth/logout. It runs behind authentication;
// the access token comes from the request context and the refresh token from
// the body. Always 204: logging out twice is not an error.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	h.Sessions.Logout(r.Context(), httpx.RawTokenFromContext(r.Context()), req.RefreshToken)

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
