package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"collectibles/internal/auth"
	"collectibles/internal/services"
	"collectibles/internal/validator"
	"collectibles/internal/websocket"
)

type banRequest struct {
	AccountID       string `json:"account_id"`
	Reason          string `json:"reason"`
	DurationMinutes int    `json:"duration_minutes"`
}

func (h *Handler) BanAccount(w http.ResponseWriter, r *http.Request) {
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateAccountID(req.AccountID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Reason == "" {
		respondError(w, http.StatusBadRequest, "reason is required")
		return
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if err := h.bans.Ban(r.Context(), req.AccountID, req.Reason, duration, operatorActor(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	// A banned account loses its session immediately.
	h.profiles.Release(r.Context(), req.AccountID)
	respondJSON(w, http.StatusCreated, map[string]string{"status": "banned"})
}

func (h *Handler) UnbanAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if err := h.bans.Unban(r.Context(), accountID, operatorActor(r)); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}

func (h *Handler) ListBans(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)
	bans, err := h.bans.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list bans")
		return
	}
	respondJSON(w, http.StatusOK, bans)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 100)
	entries, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"subject": subject,
		"total":   h.anomaly.FlagTotal(subject),
		"flags":   h.anomaly.Flags(subject),
	})
}

func (h *Handler) WSNotifications(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.AccountID)
}

// operatorActor identifies the admin actor for audit rows. The key itself
// never lands in the log.
func operatorActor(r *http.Request) string {
	if actor := r.Header.Get("X-Operator-Actor"); actor != "" {
		return actor
	}
	return services.SystemActor
}

func paginationParams(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
