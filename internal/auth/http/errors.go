package http

import (
	"errors"
	"net/http"

	"github.com/tillhq/till/internal/auth/service"
	"github.com/tillhq/till/internal/auth/store"
	"github.com/tillhq/till/pkg/httpx"
)

// writeServiceError maps a service sentinel onto a status code and the
// standard {"error": "<code>"} envelope. Anything unmapped is a 500 with an
// opaque body; the real error goes to the log, not the client.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error())
	case errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrTokenRevoked.Error())
	case errors.Is(err, service.ErrInvalidCode):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidCode.Error())
	case errors.Is(err, service.ErrExpired):
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrExpired.Error())
	case errors.Is(err, service.ErrAlreadyUsed):
		httpx.WriteError(w, http.StatusConflict, service.ErrAlreadyUsed.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		httpx.WriteError(w, http.StatusTooManyRequests, service.ErrTooManyAttempts.Error())
	case errors.Is(err, service.ErrRateLimited):
		httpx.WriteError(w, http.StatusTooManyRequests, service.ErrRateLimited.Error())
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrWeakPassword.Error())
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		httpx.WriteError(w, http.StatusBadRequest, service.ErrTwoFactorNotEnabled.Error())
	case errors.Is(err, service.ErrTwoFactorAlreadyEnabled):
		httpx.WriteError(w, http.StatusConflict, service.ErrTwoFactorAlreadyEnabled.Error())
	case errors.Is(err, store.ErrNotFound):
		// On an authenticated surface this means the token's subject no longer
		// exists; the token is as good as invalid.
		httpx.WriteError(w, http.StatusUnauthorized, service.ErrInvalidToken.Error())
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
	}
}

func decodeError(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
}
