package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/feed"
	"github.com/baharkarakas/charity-faceoff/internal/models"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

const DefaultHeartbeat = 15 * time.Second

type TotalsHandler struct {
	Svc       *services.TotalsService
	Hub       *feed.Hub
	Heartbeat time.Duration
}

func NewTotalsHandler(svc *services.TotalsService, hub *feed.Hub) *TotalsHandler {
	return &TotalsHandler{Svc: svc, Hub: hub, Heartbeat: DefaultHeartbeat}
}

func (h *TotalsHandler) List(w http.ResponseWriter, r *http.Request) {
	teams, err := h.Svc.Teams(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (h *TotalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	team, err := h.Svc.Team(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, team)
}

// Stream serves Server-Sent Events. The first "snapshot" event carries every
// team; later "totals" events carry only teams that changed. A reconnecting
// client gets a fresh snapshot, so nothing missed while away is lost.
func (h *TotalsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported", nil)
		return
	}
	ctx := r.Context()
	sub, err := h.Hub.Subscribe(ctx)
	if err != nil {
		slog.WarnContext(ctx, "totals subscribe failed", "err", err)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "totals unavailable", nil)
		return
	}
	defer sub.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", sub.Drain()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
		case <-sub.Ready():
			batch := sub.Drain()
			if len(batch) == 0 {
				continue
			}
			if err := writeEvent(w, "totals", batch); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, totals []models.TeamTotal) error {
	data, err := json.Marshal(map[string]any{"teams": totals})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
