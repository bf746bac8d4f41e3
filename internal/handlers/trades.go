package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"collectibles/internal/middleware"
	"collectibles/internal/validator"
)

type createTradeRequest struct {
	To        string           `json:"to"`
	Offered   map[string]int64 `json:"offered"`
	Requested map[string]int64 `json:"requested"`
}

func (h *Handler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.rejectIfBanned(w, r, accountID) {
		return
	}
	var req createTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateAccountID(req.To); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	trade, err := h.trades.Create(accountID, req.To, req.Offered, req.Requested)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

func (h *Handler) AcceptTrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.rejectIfBanned(w, r, accountID) {
		return
	}
	if err := h.trades.Accept(chi.URLParam(r, "id"), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handler) CancelTrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.trades.Cancel(chi.URLParam(r, "id"), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	trade, err := h.trades.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !trade.Participant(accountID) {
		respondError(w, http.StatusForbidden, "not_participant")
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	trades, err := h.trades.ListFor(accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trades)
}
