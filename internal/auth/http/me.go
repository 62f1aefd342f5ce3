package http

import (
	"net/http"

	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/httpx"
)

// MeHandler serves GET /v1/me, the authenticated identity echo.
type MeHandler struct {
	Store store.Store
}

type meResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	ProjectID        string `json:"projectId"`
	EmailVerified    bool   `json:"email_verified"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.Users().GetUserByID(r.Context(), httpx.UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, meResponse{
		ID:               user.ID,
		Email:            user.Email,
		Role:             user.Role,
		ProjectID:        user.ProjectID,
		EmailVerified:    user.EmailVerified,
		TwoFactorEnabled: user.TwoFactorEnabled(),
	})
}
