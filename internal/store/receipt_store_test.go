package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestReceiptStoreInsert(t *testing.T) {
	ctx := context.Background()
	db := stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO purchase_receipts") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 3 || args[0] != "receipt-1" || args[1] != "acct-1" || args[2] != "gems_small" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewReceiptStore(db)
	if err := store.Insert(ctx, "receipt-1", "acct-1", "gems_small"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReceiptStoreInsertDuplicate(t *testing.T) {
	db := stubDB{
		execFn: func(_ context.Context, _ string, _ ...any) (sql.Result, error) {
			return nil, &pq.Error{Code: "23505"}
		},
	}
	store := NewReceiptStore(db)
	err := store.Insert(context.Background(), "receipt-1", "acct-1", "gems_small")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestReceiptStoreDelete(t *testing.T) {
	db := stubDB{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "DELETE FROM purchase_receipts") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "receipt-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	store := NewReceiptStore(db)
	if err := store.Delete(context.Background(), "receipt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
