package handlers

import (
	"encoding/json"
	"net/http"

	"collectibles/internal/auth"
	"collectibles/internal/middleware"
	"collectibles/internal/validator"
)

type startSessionRequest struct {
	AccountID      string `json:"account_id"`
	PlatformUserID string `json:"platform_user_id"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateAccountID(req.AccountID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.rejectIfBanned(w, r, req.AccountID) {
		return
	}
	p, err := h.profiles.Checkout(r.Context(), req.AccountID, req.PlatformUserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	token, err := auth.IssueToken(h.cfg.JWTSecret, req.AccountID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "token_issue_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":    token,
		"profile":  p,
		"degraded": h.profiles.IsFallback(req.AccountID),
	})
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.profiles.Release(r.Context(), accountID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "released"})
}
