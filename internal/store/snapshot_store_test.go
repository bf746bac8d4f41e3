package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"collectibles/internal/profile"
)

func TestSnapshotStoreLoadMissingRow(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		getFn: func(_ context.Context, _ any, query string, args ...any) error {
			if !strings.Contains(query, "FROM profiles") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "acct-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return sql.ErrNoRows
		},
	})
	p, err := store.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile, got %#v", p)
	}
}

func TestSnapshotStoreLoadDecodes(t *testing.T) {
	ctx := context.Background()
	snapshot, err := json.Marshal(&profile.Profile{AccountID: "acct-1", Coins: 500})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	store := NewSnapshotStore(stubDB{
		getFn: func(_ context.Context, dest any, _ string, _ ...any) error {
			*dest.(*snapshotRow) = snapshotRow{AccountID: "acct-1", Snapshot: snapshot, SchemaVersion: 1}
			return nil
		},
	})
	p, err := store.Load(ctx, "acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil || p.AccountID != "acct-1" || p.Coins != 500 {
		t.Fatalf("unexpected profile: %#v", p)
	}
}

func TestSnapshotStoreLoadCorrupted(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		getFn: func(_ context.Context, dest any, _ string, _ ...any) error {
			*dest.(*snapshotRow) = snapshotRow{AccountID: "acct-1", Snapshot: []byte("{not json")}
			return nil
		},
	})
	if _, err := store.Load(ctx, "acct-1"); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected ErrCorrupted, got %v", err)
	}
}

func TestSnapshotStoreClaimUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO profiles") || !strings.Contains(query, "ON CONFLICT (account_id)") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 4 || args[0] != "acct-1" || args[3] != "token-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	p := &profile.Profile{AccountID: "acct-1", SchemaVersion: 1}
	if err := store.Claim(ctx, "acct-1", "token-1", p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSnapshotStoreSaveGuardsOwnerToken(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "WHERE account_id = $3 AND owner_token = $4") {
				t.Fatalf("unexpected query: %s", query)
			}
			if args[2] != "acct-1" || args[3] != "token-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	if err := store.Save(ctx, "acct-1", "token-1", &profile.Profile{AccountID: "acct-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSnapshotStoreSaveTakenOver(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		execFn: func(_ context.Context, _ string, _ ...any) (sql.Result, error) {
			return stubResult{rows: 0}, nil
		},
	})
	err := store.Save(ctx, "acct-1", "stale-token", &profile.Profile{AccountID: "acct-1"})
	if !errors.Is(err, ErrOwnedElsewhere) {
		t.Fatalf("expected ErrOwnedElsewhere, got %v", err)
	}
}

func TestSnapshotStoreRelease(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "SET owner_token = ''") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 2 || args[0] != "acct-1" || args[1] != "token-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	})
	if err := store.Release(ctx, "acct-1", "token-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
