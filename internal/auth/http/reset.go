package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/pkg/httpx"
	"github.com/tillhq/till/pkg/slogx"
)

// ResetHandler serves the forgotten-password endpoints.
type ResetHandler struct {
	Resets *service.ResetService
}

type forgotRequest struct {
	ProjectID string `json:"projectId"`
	Email     string `json:"email"`
}

// HandleForgot serves POST /v1/auth/password/forgot. The response is the
// same whether or not the account exists; a dispatch failure is logged but
// still answered generically for the same reason.
func (h *ResetHandler) HandleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.ProjectID == "" {
		decodeError(w)
		return
	}

	if err := h.Resets.Request(r.Context(), req.ProjectID, req.Email); err != nil {
		if !errors.Is(err, service.ErrDispatchFailed) {
			slogx.FromContext(r.Context()).Error("reset request failed", "err", err)
		}
		// fall through to the generic answer
	}

	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// HandleReset serves POST /v1/auth/password/reset.
func (h *ResetHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		decodeError(w)
		return
	}

	if err := h.Resets.Redeem(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
