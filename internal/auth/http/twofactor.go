package http

import (
	"encoding/json"
	"net/http"

	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/pkg/httpx"
)

// TwoFactorHandler serves the 2FA challenge and management endpoints.
type TwoFactorHandler struct {
	TwoFactor *service.TwoFactorService
}

type twoFactorVerifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Method         string `json:"method"` // "totp" or "recovery_code"
	Code           string `json:"code"`
}

// HandleVerify serves POST /v1/auth/2fa/verify: exchanges a challenge token
// plus a one-time code for a full session.
func (h *TwoFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		decodeError(w)
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		decodeError(w)
		return
	}
	if req.Method == "" {
		req.Method = "totp"
	}

	sess, err := h.TwoFactor.Verify(r.Context(), req.ChallengeToken, req.Method, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sess)
}

// HandleEnroll serves POST /v1/auth/2fa/enroll (authenticated). Returns the
// TOTP secret and otpauth URL for the authenticator app.
func (h *TwoFactorHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := h.TwoFactor.Enroll(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

type twoFactorCodeRequest struct {
	Method string `json:"method"`
	Code   string `json:"code"`
}

// HandleEnable serves POST /v1/auth/2fa/enable (authenticated). Confirms
// enrollment with a live code and returns the recovery codes, shown once.
func (h *TwoFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		decodeError(w)
		return
	}

	codes, err := h.TwoFactor.Enable(r.Context(), httpx.UserIDFromContext(r.Context()), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"recovery_codes": codes,
	})
}

// HandleDisable serves POST /v1/auth/2fa/disable (authenticated). A live
// code is required on top of the access token.
func (h *TwoFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		decodeError(w)
		return
	}
	if req.Method == "" {
		req.Method = "totp"
	}

	if err := h.TwoFactor.Disable(r.Context(), httpx.UserIDFromContext(r.Context()), req.Method, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
