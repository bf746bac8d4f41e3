package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"collectibles/internal/db"
	"collectibles/internal/money"
	"collectibles/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// SKU maps a store product to the gems it grants. Provider integration is
// out of scope; this service only handles the post-purchase grant.
type SKU struct {
	Code       string
	Gems       int64
	PriceMinor int64
}

func DefaultSKUs() map[string]SKU {
	return map[string]SKU{
		"gems_small":  {Code: "gems_small", Gems: 100, PriceMinor: 199},
		"gems_medium": {Code: "gems_medium", Gems: 600, PriceMinor: 999},
		"gems_large":  {Code: "gems_large", Gems: 1400, PriceMinor: 1999},
	}
}

// SKUsFromEnv parses a "code:gems:price" comma list, e.g.
// "gems_small:100:1.99,gems_large:1400:19.99".
func SKUsFromEnv(raw string) (map[string]SKU, error) {
	skus := make(map[string]SKU)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed sku entry %q", entry)
		}
		gems, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || gems <= 0 {
			return nil, fmt.Errorf("bad gem count in %q", entry)
		}
		priceMinor, err := money.ParseMinor(fields[2])
		if err != nil || priceMinor <= 0 {
			return nil, fmt.Errorf("bad price in %q", entry)
		}
		code := fields[0]
		skus[code] = SKU{Code: code, Gems: gems, PriceMinor: priceMinor}
	}
	if len(skus) == 0 {
		return nil, fmt.Errorf("no skus configured")
	}
	return skus, nil
}

// ReceiptLog is the durable replay guard. Insert must refuse a receipt id
// that was already recorded, from this process or any earlier one.
type ReceiptLog interface {
	Insert(ctx context.Context, receiptID, accountID, sku string) error
	Delete(ctx context.Context, receiptID string) error
}

type Purchases struct {
	ledger   *Ledger
	limiter  *RateLimiter
	txRunner db.TxRunner
	audit    AuditLogger
	receipts ReceiptLog
	skus     map[string]SKU
}

func NewPurchases(ledger *Ledger, limiter *RateLimiter, txRunner db.TxRunner, audit AuditLogger, receipts ReceiptLog, skus map[string]SKU) *Purchases {
	return &Purchases{
		ledger:   ledger,
		limiter:  limiter,
		txRunner: txRunner,
		audit:    audit,
		receipts: receipts,
		skus:     skus,
	}
}

// Grant credits the SKU's gems after a completed purchase. The reported
// price must match the SKU's list price exactly, and each receipt grants at
// most once. A grant that lands on a full gem balance is still a success
// with whatever clamped delta fit.
func (s *Purchases) Grant(ctx context.Context, accountID, skuCode, price, receiptID string) (int64, error) {
	sku, ok := s.skus[skuCode]
	if !ok {
		return 0, ErrNotFound
	}
	if receiptID == "" {
		return 0, ErrInvalidAmount
	}
	reported, err := decimal.NewFromString(price)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	expected := decimal.New(sku.PriceMinor, -2)
	if !reported.Equal(expected) {
		return 0, ErrInvalidAmount
	}
	if s.limiter != nil && !s.limiter.Allow(accountID, "purchase") {
		return 0, ErrRateLimited
	}

	// Recording the receipt before crediting makes the guard survive a
	// restart: a replay hits the primary key, not a process-local map.
	if err := s.receipts.Insert(ctx, receiptID, accountID, sku.Code); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return 0, ErrDuplicateReceipt
		}
		return 0, err
	}

	applied, err := s.ledger.Credit(accountID, Gems(), sku.Gems, "purchase:"+sku.Code)
	if err != nil {
		_ = s.receipts.Delete(ctx, receiptID)
		return 0, err
	}

	if s.txRunner != nil && s.audit != nil {
		data, _ := json.Marshal(map[string]any{
			"sku":     sku.Code,
			"price":   money.FormatMinor(sku.PriceMinor),
			"granted": applied,
		})
		_ = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			return s.audit.Log(ctx, tx, accountID, "purchase_grant", "receipt", receiptID, string(data))
		})
	}
	return applied, nil
}
