package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collectibles/internal/middleware"
	"collectibles/internal/validator"
)

type sendGiftRequest struct {
	To      string `json:"to"`
	Item    string `json:"item"`
	Count   int64  `json:"count"`
	Message string `json:"message"`
}

func (h *Handler) SendGift(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.rejectIfBanned(w, r, accountID) {
		return
	}
	var req sendGiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateAccountID(req.To); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	gift, err := h.gifts.Send(accountID, req.To, req.Item, req.Count, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, gift)
}

func (h *Handler) ClaimGift(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	credited, err := h.gifts.Claim(chi.URLParam(r, "id"), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"credited": credited})
}

func (h *Handler) ClaimAllGifts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	results := h.gifts.ClaimAll(accountID)
	claimed := 0
	failed := 0
	for _, result := range results {
		if result.Err == nil {
			claimed++
		} else {
			failed++
		}
	}
	respondJSON(w, http.StatusOK, map[string]int{"claimed": claimed, "failed": failed})
}

func (h *Handler) RejectGift(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.gifts.Reject(chi.URLParam(r, "id"), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *Handler) ListGifts(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	gifts, err := h.gifts.ListFor(accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gifts)
}
