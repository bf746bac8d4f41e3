package store

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
)

// ErrDuplicate reports an insert that collided with an existing row.
var ErrDuplicate = errors.New("row already exists")

// ReceiptStore records store receipts that already granted, so a replayed
// receipt is refused even across process restarts.
type ReceiptStore struct {
	db DB
}

type Receipt struct {
	ReceiptID string    `db:"receipt_id"`
	AccountID string    `db:"account_id"`
	SKU       string    `db:"sku"`
	CreatedAt time.Time `db:"created_at"`
}

func NewReceiptStore(db DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

func (s *ReceiptStore) Insert(ctx context.Context, receiptID, accountID, sku string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_receipts (receipt_id, account_id, sku)
		VALUES ($1, $2, $3)
	`, receiptID, accountID, sku)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Delete releases a receipt whose grant failed after the row was written.
func (s *ReceiptStore) Delete(ctx context.Context, receiptID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM purchase_receipts WHERE receipt_id = $1
	`, receiptID)
	return err
}
