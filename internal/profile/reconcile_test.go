package profile

import (
	"testing"
	"time"
)

func TestReconcileFillsMissingSubstructures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Profile{Coins: 100}

	fixes := Reconcile(p, "acct-1", now)
	if fixes == 0 {
		t.Fatal("expected fills")
	}
	if p.AccountID != "acct-1" {
		t.Fatalf("account id not backfilled: %q", p.AccountID)
	}
	if p.Inventory == nil || p.Stats == nil || p.Prefs == nil || p.Trades == nil || p.Gifts == nil {
		t.Fatal("substructures should be recreated")
	}
	if p.SchemaVersion != SchemaVersion {
		t.Fatalf("schema version not stamped: %d", p.SchemaVersion)
	}
	if p.CreatedAt.IsZero() || p.LastSeenAt.IsZero() {
		t.Fatal("zero timestamps should be set")
	}
	if p.Coins != 100 {
		t.Fatalf("present data must not be touched, coins=%d", p.Coins)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Profile{}
	Reconcile(p, "acct-1", now)
	if fixes := Reconcile(p, "acct-1", now); fixes != 0 {
		t.Fatalf("second pass should fill nothing, filled %d", fixes)
	}
}

func TestReconcileUpgradesSchemaVersion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewFromTemplate("acct-1", now)
	p.SchemaVersion = 1
	if fixes := Reconcile(p, "acct-1", now); fixes != 1 {
		t.Fatalf("expected only the version stamp, got %d fixes", fixes)
	}
	if p.SchemaVersion != SchemaVersion {
		t.Fatalf("version not upgraded: %d", p.SchemaVersion)
	}
}
