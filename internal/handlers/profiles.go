package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collectibles/internal/middleware"
	"collectibles/internal/profile"
	"collectibles/internal/services"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var snapshot json.RawMessage
	err := h.profiles.With(accountID, func(p *profile.Profile) error {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		snapshot = raw
		return nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"profile":  snapshot,
		"degraded": h.profiles.IsFallback(accountID),
	})
}

type saveProfileRequest struct {
	Prefs *profile.Prefs `json:"prefs"`
}

func (h *Handler) SaveProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saveProfileRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid payload")
			return
		}
	}
	if !h.limiter.Allow(accountID, "profile_save") {
		respondServiceError(w, services.ErrRateLimited)
		return
	}
	if req.Prefs != nil {
		err := h.profiles.With(accountID, func(p *profile.Profile) error {
			p.Prefs = req.Prefs
			return nil
		})
		if err != nil {
			respondServiceError(w, err)
			return
		}
	}
	saved := h.profiles.Save(r.Context(), accountID)
	respondJSON(w, http.StatusOK, map[string]any{"saved": saved})
}

// ProfileReport runs validation against a checked-out profile without
// repairing it. Operator surface only.
func (h *Handler) ProfileReport(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	report, err := h.profiles.Report(accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
