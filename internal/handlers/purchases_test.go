package handlers

import (
	"net/http"
	"testing"
)

func TestGrantPurchaseOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.do(t, http.MethodPost, "/purchases", token, map[string]any{
		"sku":        "gems_small",
		"price":      "1.99",
		"receipt_id": "receipt-1",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		GemsGranted int64 `json:"gems_granted"`
	}
	decodeBody(t, rr, &payload)
	if payload.GemsGranted != 100 {
		t.Fatalf("expected 100 gems, got %d", payload.GemsGranted)
	}

	rr = env.do(t, http.MethodGet, "/balances", token, nil)
	var balances struct {
		Gems int64 `json:"gems"`
	}
	decodeBody(t, rr, &balances)
	if balances.Gems != 110 {
		t.Fatalf("expected 110 gems, got %d", balances.Gems)
	}
}

func TestGrantPurchaseRequiresReceipt(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.do(t, http.MethodPost, "/purchases", token, map[string]any{
		"sku":   "gems_small",
		"price": "1.99",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGrantPurchaseReplayRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	body := map[string]any{"sku": "gems_small", "price": "1.99", "receipt_id": "receipt-1"}
	if rr := env.do(t, http.MethodPost, "/purchases", token, body); rr.Code != http.StatusCreated {
		t.Fatalf("first grant should pass, got %d", rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/purchases", token, body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "duplicate_receipt" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestGrantPurchasePriceMismatch(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.startSession(t, "player-1")

	rr := env.do(t, http.MethodPost, "/purchases", token, map[string]any{
		"sku": "gems_small", "price": "0.99", "receipt_id": "receipt-2",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "invalid_amount" {
		t.Fatalf("unexpected error code %q", code)
	}
}
