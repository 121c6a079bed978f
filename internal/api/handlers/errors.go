package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

// writeServiceError maps service errors onto the JSON error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var mis *services.MisconfigurationError
	switch {
	case errors.Is(err, services.ErrTeamNotFound):
		httpx.WriteError(w, http.StatusNotFound, "team_not_found", err.Error(), nil)
	case errors.Is(err, services.ErrIssueNotFound):
		httpx.WriteError(w, http.StatusNotFound, "issue_not_found", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidAmount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, services.ErrTotalDecrease):
		httpx.WriteError(w, http.StatusConflict, "total_decrease", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidLogin):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.As(err, &mis):
		slog.ErrorContext(r.Context(), "request blocked by misconfiguration", "missing", mis.Missing)
		httpx.WriteError(w, http.StatusInternalServerError, "misconfigured", "service is not configured", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}
