package handlers

import (
	"net/http"

	"github.com/baharkarakas/charity-faceoff/internal/api/httpx"
	"github.com/baharkarakas/charity-faceoff/internal/services"
)

type AuthHandler struct {
	Svc *services.AuthService
}

func NewAuthHandler(svc *services.AuthService) *AuthHandler {
	return &AuthHandler{Svc: svc}
}

type loginReq struct {
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.DecodeJSON(w, r, 4<<10, &req); err != nil || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "password is required", nil)
		return
	}
	pair, err := h.Svc.Login(req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.DecodeJSON(w, r, 4<<10, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "refresh_token is required", nil)
		return
	}
	pair, err := h.Svc.Refresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}
