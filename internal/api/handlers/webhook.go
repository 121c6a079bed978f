package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/services"
	"github.com/baharkarakas/charity-faceoff/internal/webhook"
)

// MaxWebhookBody caps the raw notification body read for verification.
const MaxWebhookBody = 64 << 10

type WebhookHandler struct {
	Reconciler *services.Reconciler
}

func NewWebhookHandler(rc *services.Reconciler) *WebhookHandler {
	return &WebhookHandler{Reconciler: rc}
}

type webhookResp struct {
	Received bool `json:"received"`
	services.ReconcileResult
}

// Stripe acknowledges every verified notification with 200, whatever the
// ledger outcome, so the provider does not keep retrying. Only a failed
// verification (400) or a missing secret (500) is reported as an error.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxWebhookBody)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "payload too large", nil)
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "could not read body", nil)
		return
	}

	res, err := h.Reconciler.Handle(r.Context(), payload, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		var verr *webhook.VerificationError
		if errors.As(err, &verr) && verr.Misconfigured() {
			httpx.WriteError(w, http.StatusInternalServerError, "misconfigured", "webhook secret is not configured", nil)
			return
		}
		httpx.WriteError(w, http.StatusBadRequest, "verification_failed", "webhook verification failed", map[string]string{"reason": res.Reason})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, webhookResp{Received: true, ReconcileResult: res})
}
