package services

import (
	"errors"
	"testing"

	"collectibles/internal/catalog"
	"collectibles/internal/profile"
)

func TestDebitInsufficientLeavesBalanceUntouched(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1") // template: 500 coins

	err := w.ledger.Debit("acct-1", Coins(), 120, "test")
	if err != nil {
		t.Fatalf("debit within balance: %v", err)
	}
	err = w.ledger.Debit("acct-1", Coins(), 500, "test")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := w.balance(t, "acct-1", catalog.CurrencyCoins); got != 380 {
		t.Fatalf("failed debit must not move the balance, got %d", got)
	}
}

func TestCreditClampsAtCap(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")
	_ = w.profiles.With("acct-1", func(p *profile.Profile) error {
		p.Gems = catalog.GemsCap - 10
		return nil
	})

	applied, err := w.ledger.Credit("acct-1", Gems(), 100, "test")
	if err != nil {
		t.Fatalf("partial credit is a success: %v", err)
	}
	if applied != 10 {
		t.Fatalf("expected clamped delta 10, got %d", applied)
	}
	if got := w.balance(t, "acct-1", catalog.CurrencyGems); got != catalog.GemsCap {
		t.Fatalf("balance should sit at the cap, got %d", got)
	}

	_, err = w.ledger.Credit("acct-1", Gems(), 1, "test")
	if !errors.Is(err, ErrMaxExceeded) {
		t.Fatalf("credit with zero room should fail, got %v", err)
	}
}

func TestCreditRejectsInvalidInput(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")

	if _, err := w.ledger.Credit("acct-1", Coins(), 0, "test"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}
	if _, err := w.ledger.Credit("acct-1", Coins(), -5, "test"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative amount: got %v", err)
	}
	if _, err := w.ledger.Credit("acct-1", Coins(), w.limits.AmountCeiling+1, "test"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("over ceiling: got %v", err)
	}
	if _, err := w.ledger.Credit("acct-1", Item("no_such_item"), 1, "test"); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("unknown item: got %v", err)
	}
	if _, err := w.ledger.Credit("acct-1", Resource{Type: ResourceCurrency, Code: "shells"}, 1, "test"); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("unknown currency: got %v", err)
	}
}

func TestSpendMultiAllOrNothing(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")
	w.give(t, "acct-1", "sprout", 2)

	costs := []Cost{
		{Resource: Coins(), Amount: 100},
		{Resource: Item("sprout"), Amount: 5},
	}
	err := w.ledger.SpendMulti("acct-1", costs, "craft")
	if !errors.Is(err, ErrInsufficientItems) {
		t.Fatalf("expected ErrInsufficientItems, got %v", err)
	}
	if got := w.balance(t, "acct-1", catalog.CurrencyCoins); got != 500 {
		t.Fatalf("failed multi-spend must not touch coins, got %d", got)
	}
	if got := w.itemCount(t, "acct-1", "sprout"); got != 2 {
		t.Fatalf("failed multi-spend must not touch items, got %d", got)
	}

	costs[1].Amount = 2
	if err := w.ledger.SpendMulti("acct-1", costs, "craft"); err != nil {
		t.Fatalf("affordable multi-spend: %v", err)
	}
	if got := w.balance(t, "acct-1", catalog.CurrencyCoins); got != 400 {
		t.Fatalf("coins leg not applied, got %d", got)
	}
	if got := w.itemCount(t, "acct-1", "sprout"); got != 0 {
		t.Fatalf("item leg not applied, got %d", got)
	}
}

func TestSpendMultiAggregatesDuplicateResources(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1") // 500 coins

	costs := []Cost{
		{Resource: Coins(), Amount: 300},
		{Resource: Coins(), Amount: 300},
	}
	err := w.ledger.SpendMulti("acct-1", costs, "craft")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("duplicate lines must be summed for affordability, got %v", err)
	}
	if got := w.balance(t, "acct-1", catalog.CurrencyCoins); got != 500 {
		t.Fatalf("balance should be untouched, got %d", got)
	}
}

func TestTransferMovesItems(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")
	w.checkout(t, "acct-2")
	w.give(t, "acct-1", "frostfang", 3)

	if err := w.ledger.Transfer("acct-1", "acct-2", Item("frostfang"), 2, "test"); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := w.itemCount(t, "acct-1", "frostfang"); got != 1 {
		t.Fatalf("sender holds %d, want 1", got)
	}
	if got := w.itemCount(t, "acct-2", "frostfang"); got != 2 {
		t.Fatalf("recipient holds %d, want 2", got)
	}
}

func TestTransferCompensatesFailedCredit(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")
	w.give(t, "acct-1", "frostfang", 3)
	// acct-2 never checked out; the credit leg fails with ErrProfileUnavailable.

	err := w.ledger.Transfer("acct-1", "acct-2", Item("frostfang"), 2, "test")
	if !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
	if got := w.itemCount(t, "acct-1", "frostfang"); got != 3 {
		t.Fatalf("compensating credit should restore the sender, got %d", got)
	}
}

func TestCreditNewItemKindBumpsUniqueCollected(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")

	if _, err := w.ledger.Credit("acct-1", Item("voidbloom"), 1, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := w.ledger.Credit("acct-1", Item("voidbloom"), 1, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	var unique int64
	_ = w.profiles.With("acct-1", func(p *profile.Profile) error {
		unique = p.Stats.UniqueCollected
		return nil
	})
	if unique != 1 {
		t.Fatalf("a kind counts once, got %d", unique)
	}
}

func TestLedgerAppendsTransactionRecords(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")

	if err := w.ledger.Debit("acct-1", Coins(), 100, "shop"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	var records []profile.TransactionRecord
	var stats profile.Stats
	_ = w.profiles.With("acct-1", func(p *profile.Profile) error {
		records = append(records, p.Transactions...)
		stats = *p.Stats
		return nil
	})
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.Kind != "debit" || rec.Resource != catalog.CurrencyCoins || rec.Amount != -100 || rec.Detail != "shop" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if stats.CoinsSpent != 100 {
		t.Fatalf("stats not bumped: %+v", stats)
	}
}

func TestBalancePushNotification(t *testing.T) {
	w := newWorld(t)
	w.checkout(t, "acct-1")

	if _, err := w.ledger.Credit("acct-1", Coins(), 50, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := w.notifier.count("balance"); got != 1 {
		t.Fatalf("expected one balance push, got %d", got)
	}
}
