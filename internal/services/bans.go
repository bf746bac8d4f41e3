package services

import (
	"context"
	"encoding/json"
	"time"

	"collectibles/internal/db"
	"collectibles/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BanStore interface {
	Insert(ctx context.Context, tx store.Execer, ban store.Ban) error
	Lift(ctx context.Context, tx store.Execer, accountID string) (int64, error)
	GetActive(ctx context.Context, accountID string) (store.Ban, bool, error)
	List(ctx context.Context, limit, offset int) ([]store.Ban, error)
}

type AuditLogger interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// Bans is the registry consulted at session start and on every exchange
// entry point. Expiry is lazy: a past-expiry ban is treated as absent and
// lifted the next time anyone checks.
type Bans struct {
	txRunner db.TxRunner
	bans     BanStore
	audit    AuditLogger
	now      func() time.Time
}

func NewBans(txRunner db.TxRunner, bans BanStore, audit AuditLogger, now func() time.Time) *Bans {
	if now == nil {
		now = time.Now
	}
	return &Bans{txRunner: txRunner, bans: bans, audit: audit, now: now}
}

// Ban records a ban; duration zero means permanent.
func (b *Bans) Ban(ctx context.Context, accountID, reason string, duration time.Duration, admin string) error {
	ban := store.Ban{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Reason:    reason,
		BannedBy:  admin,
	}
	if duration > 0 {
		expires := b.now().Add(duration).UTC()
		ban.ExpiresAt = &expires
	}
	return b.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := b.bans.Insert(ctx, tx, ban); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"reason": reason})
		return b.audit.Log(ctx, tx, admin, "ban", "account", accountID, string(data))
	})
}

func (b *Bans) Unban(ctx context.Context, accountID, admin string) error {
	return b.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		lifted, err := b.bans.Lift(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if lifted == 0 {
			return ErrNotFound
		}
		return b.audit.Log(ctx, tx, admin, "unban", "account", accountID, "{}")
	})
}

// IsBanned reports the active ban, pruning one that has quietly expired.
func (b *Bans) IsBanned(ctx context.Context, accountID string) (bool, string, error) {
	ban, found, err := b.bans.GetActive(ctx, accountID)
	if err != nil {
		return false, "", err
	}
	if !found {
		return false, "", nil
	}
	if ban.ExpiresAt != nil && !b.now().Before(*ban.ExpiresAt) {
		_ = b.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
			_, err := b.bans.Lift(ctx, tx, accountID)
			return err
		})
		return false, "", nil
	}
	return true, ban.Reason, nil
}

func (b *Bans) List(ctx context.Context, limit, offset int) ([]store.Ban, error) {
	return b.bans.List(ctx, limit, offset)
}
