package handlers

import (
	"net/http"
	"testing"

	"collectibles/internal/profile"
)

func TestGetBalances(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")
	env.give(t, "player-1", "sprout", 2)

	rr := env.do(t, http.MethodGet, "/balances", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Coins     int64            `json:"coins"`
		Gems      int64            `json:"gems"`
		Inventory map[string]int64 `json:"inventory"`
	}
	decodeBody(t, rr, &payload)
	if payload.Coins != 500 || payload.Gems != 10 {
		t.Fatalf("unexpected balances: %+v", payload)
	}
	if payload.Inventory["sprout"] != 2 {
		t.Fatalf("unexpected inventory: %#v", payload.Inventory)
	}
}

func TestSpendDebitsAtomically(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")
	env.give(t, "player-1", "pebble", 1)

	rr := env.do(t, http.MethodPost, "/spend", token, map[string]any{
		"costs": []map[string]any{
			{"type": "currency", "code": "coins", "amount": 100},
			{"type": "item", "code": "pebble", "amount": 1},
		},
		"reason": "craft",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/balances", token, nil)
	var payload struct {
		Coins     int64            `json:"coins"`
		Inventory map[string]int64 `json:"inventory"`
	}
	decodeBody(t, rr, &payload)
	if payload.Coins != 400 {
		t.Fatalf("expected 400 coins, got %d", payload.Coins)
	}
	if payload.Inventory["pebble"] != 0 {
		t.Fatalf("pebble should be consumed: %#v", payload.Inventory)
	}
}

func TestSpendInsufficientFundsLeavesBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.do(t, http.MethodPost, "/spend", token, map[string]any{
		"costs": []map[string]any{
			{"type": "currency", "code": "coins", "amount": 9999},
		},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "insufficient_funds" {
		t.Fatalf("unexpected error code %q", code)
	}

	rr = env.do(t, http.MethodGet, "/balances", token, nil)
	var payload struct {
		Coins int64 `json:"coins"`
	}
	decodeBody(t, rr, &payload)
	if payload.Coins != 500 {
		t.Fatalf("failed spend must not move coins, got %d", payload.Coins)
	}
}

func TestSpendRejectsUnknownCostType(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.do(t, http.MethodPost, "/spend", token, map[string]any{
		"costs": []map[string]any{{"type": "karma", "code": "coins", "amount": 1}},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListTransactionsAfterSpend(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	env.do(t, http.MethodPost, "/spend", token, map[string]any{
		"costs":  []map[string]any{{"type": "currency", "code": "coins", "amount": 50}},
		"reason": "sticker",
	})

	rr := env.do(t, http.MethodGet, "/transactions", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var records []profile.TransactionRecord
	decodeBody(t, rr, &records)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Kind != "debit" || records[0].Amount != -50 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}
