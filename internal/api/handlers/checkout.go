package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/api/validate"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

type CheckoutHandler struct {
	Svc *services.CheckoutService
}

func NewCheckoutHandler(svc *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{Svc: svc}
}

type checkoutReq struct {
	TeamID      string          `json:"teamId"`
	CharityName string          `json:"charityName"`
	Amount      json.RawMessage `json:"amount"`
	// selectedAmount is what the donation widget historically posted.
	SelectedAmount json.RawMessage `json:"selectedAmount"`
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := httpx.DecodeJSON(w, r, 4<<10, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	raw := req.Amount
	if len(raw) == 0 {
		raw = req.SelectedAmount
	}
	amount, amountErr := validate.PositiveInt("amount", raw)
	if errs := validate.Collect(
		validate.Required("teamId", req.TeamID),
		validate.Required("charityName", req.CharityName),
		validate.MaxLen("charityName", req.CharityName, 200),
		amountErr,
	); len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", errs.Error(), errs)
		return
	}

	sess, err := h.Svc.Create(r.Context(), req.TeamID, req.CharityName, amount)
	if err != nil {
		if errors.Is(err, services.ErrTeamNotFound) {
			httpx.WriteError(w, http.StatusBadRequest, "team_not_found", err.Error(), nil)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, sess)
}
