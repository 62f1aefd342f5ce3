package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/pkg/httpx"
)

// VerificationHandler serves the email verification endpoints.
type VerificationHandler struct {
	Verification *service.VerificationService
}

type verificationRequest struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
	Code      string `json:"code,omitempty"`
}

// HandleResend serves POST /v1/auth/verification/resend. A dispatch failure
// comes back as 502 so clients can tell "try again" from "check your inbox".
func (h *VerificationHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.ProjectID == "" {
		decodeError(w)
		return
	}

	if err := h.Verification.Resend(r.Context(), req.ProjectID, req.Email); err != nil {
		if errors.Is(err, service.ErrDispatchFailed) {
			httpx.WriteError(w, http.StatusBadGateway, service.ErrDispatchFailed.Error())
			return
		}
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// HandleVerify serves POST /v1/auth/verification/verify.
func (h *VerificationHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.Email == "" || req.ProjectID == "" || req.Code == "" {
		decodeError(w)
		return
	}

	if err := h.Verification.Verify(r.Context(), req.ProjectID, req.Email, req.Code); err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}
