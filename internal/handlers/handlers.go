package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"collectibles/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the service error taxonomy to stable wire codes.
func respondServiceError(w http.ResponseWriter, err error) {
	for _, mapping := range errorTable {
		if errors.Is(err, mapping.err) {
			respondError(w, mapping.status, mapping.code)
			return
		}
	}
	respondError(w, http.StatusInternalServerError, "internal_error")
}

// rejectIfBanned answers whether the request was already terminated because
// the account carries an active ban. Exchange entry points call this before
// touching any state so banned accounts cannot move value around.
func (h *Handler) rejectIfBanned(w http.ResponseWriter, r *http.Request, accountID string) bool {
	banned, reason, err := h.bans.IsBanned(r.Context(), accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "ban_check_failed")
		return true
	}
	if banned {
		respondJSON(w, http.StatusForbidden, map[string]string{
			"error":  "banned",
			"reason": reason,
		})
		return true
	}
	return false
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{services.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
	{services.ErrMessageTooLong, http.StatusBadRequest, "message_too_long"},
	{services.ErrInsufficientFunds, http.StatusBadRequest, "insufficient_funds"},
	{services.ErrInsufficientItems, http.StatusBadRequest, "insufficient_items"},
	{services.ErrMaxExceeded, http.StatusBadRequest, "max_exceeded"},
	{services.ErrNotParticipant, http.StatusForbidden, "not_participant"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrExpired, http.StatusGone, "expired"},
	{services.ErrTooManyPending, http.StatusConflict, "too_many_pending"},
	{services.ErrDailyLimitReached, http.StatusTooManyRequests, "daily_limit_reached"},
	{services.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{services.ErrProfileUnavailable, http.StatusServiceUnavailable, "profile_unavailable"},
	{services.ErrBusy, http.StatusConflict, "busy"},
	{services.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{services.ErrSelfTrade, http.StatusBadRequest, "self_trade"},
	{services.ErrSelfGift, http.StatusBadRequest, "self_gift"},
	{services.ErrOptedOut, http.StatusForbidden, "opted_out"},
	{services.ErrBanned, http.StatusForbidden, "banned"},
	{services.ErrDuplicateReceipt, http.StatusConflict, "duplicate_receipt"},
}
