package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/api/validate"
	"github.com/baharkarakas/charity-faceoff/internal/middleware"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

const maxListLimit = 200

type AdminHandler struct {
	Svc   *services.AdminService
	Diags *services.DiagnosticsService
}

func NewAdminHandler(svc *services.AdminService, diags *services.DiagnosticsService) *AdminHandler {
	return &AdminHandler{Svc: svc, Diags: diags}
}

type adjustReq struct {
	Amount    json.RawMessage `json:"amount"`
	Increment bool            `json:"increment"`
}

// AdjustTotal sets or increments a team total outside the payment flow.
func (h *AdminHandler) AdjustTotal(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := httpx.DecodeJSON(w, r, 4<<10, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	amount, ferr := validate.PositiveInt("amount", req.Amount)
	if ferr != nil {
		errs := validate.Collect(ferr)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", errs.Error(), errs)
		return
	}

	actor, _ := middleware.Subject(r.Context())
	teamID := chi.URLParam(r, "teamID")
	change, err := h.Svc.AdjustTotal(r.Context(), teamID, amount, req.Increment, actor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"team_id":        teamID,
		"previous_total": change.PreviousTotal,
		"new_total":      change.NewTotal,
	})
}

func (h *AdminHandler) Donations(w http.ResponseWriter, r *http.Request) {
	limit := httpx.QueryInt(r, "limit", 50, maxListLimit)
	offset := httpx.QueryInt(r, "offset", 0, 0)
	ds, err := h.Svc.Donations(r.Context(), chi.URLParam(r, "teamID"), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"donations": ds, "limit": limit, "offset": offset})
}

func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	logs, err := h.Svc.TeamAudit(r.Context(), chi.URLParam(r, "teamID"), httpx.QueryInt(r, "limit", 50, maxListLimit))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (h *AdminHandler) Issues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.Svc.OpenIssues(r.Context(), httpx.QueryInt(r, "limit", 50, maxListLimit))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (h *AdminHandler) ResolveIssue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "issueID")
	if err := h.Svc.ResolveIssue(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"id": id, "status": "resolved"})
}

func (h *AdminHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, h.Diags.Report(r.Context(), httpx.QueryInt(r, "limit", 20, maxListLimit)))
}
