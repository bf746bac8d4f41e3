package handlers

import (
	"encoding/json"
	"net/http"

	"collectibles/internal/middleware"
)

type purchaseRequest struct {
	SKU       string `json:"sku"`
	Price     string `json:"price"`
	ReceiptID string `json:"receipt_id"`
}

func (h *Handler) GrantPurchase(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ReceiptID == "" {
		respondError(w, http.StatusBadRequest, "receipt_id is required")
		return
	}
	granted, err := h.purchases.Grant(r.Context(), accountID, req.SKU, req.Price, req.ReceiptID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]int64{"gems_granted": granted})
}
