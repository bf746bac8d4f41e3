package handlers

import (
	"encoding/json"
	"net/http"

	"collectibles/internal/catalog"
	"collectibles/internal/middleware"
	"collectibles/internal/profile"
	"collectibles/internal/services"
)

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var coins, gems int64
	var inventory map[string]int64
	err := h.profiles.With(accountID, func(p *profile.Profile) error {
		coins = p.CurrencyBalance(catalog.CurrencyCoins)
		gems = p.CurrencyBalance(catalog.CurrencyGems)
		inventory = make(map[string]int64, len(p.Inventory))
		for code, count := range p.Inventory {
			inventory[code] = count
		}
		return nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"coins":     coins,
		"gems":      gems,
		"inventory": inventory,
	})
}

type costLine struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

type spendRequest struct {
	Costs  []costLine `json:"costs"`
	Reason string     `json:"reason"`
}

func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req spendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.Costs) == 0 {
		respondError(w, http.StatusBadRequest, "costs are required")
		return
	}
	if req.Reason == "" {
		req.Reason = "spend"
	}
	costs := make([]services.Cost, 0, len(req.Costs))
	for _, line := range req.Costs {
		res := services.Resource{Code: line.Code}
		switch line.Type {
		case "currency":
			res.Type = services.ResourceCurrency
		case "item":
			res.Type = services.ResourceItem
		default:
			respondError(w, http.StatusBadRequest, "unknown cost type")
			return
		}
		costs = append(costs, services.Cost{Resource: res, Amount: line.Amount})
	}
	if err := h.ledger.SpendMulti(accountID, costs, req.Reason); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "spent"})
}

// ListTransactions serves the profile's recent-transaction ring, newest last.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var records []profile.TransactionRecord
	err := h.profiles.With(accountID, func(p *profile.Profile) error {
		records = append(records, p.Transactions...)
		return nil
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
