package store

import (
	"context"
	"database/sql"
	"time"
)

type BanStore struct {
	db DB
}

type Ban struct {
	ID        string     `db:"id"`
	AccountID string     `db:"account_id"`
	Reason    string     `db:"reason"`
	BannedBy  string     `db:"banned_by"`
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
	LiftedAt  *time.Time `db:"lifted_at"`
}

func NewBanStore(db DB) *BanStore {
	return &BanStore{db: db}
}

func (s *BanStore) Insert(ctx context.Context, tx Execer, ban Ban) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO bans (id, account_id, reason, banned_by, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ban.ID, ban.AccountID, ban.Reason, ban.BannedBy, ban.ExpiresAt)
	return err
}

func (s *BanStore) Lift(ctx context.Context, tx Execer, accountID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bans
		SET lifted_at = NOW()
		WHERE account_id = $1 AND lifted_at IS NULL
	`, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetActive returns the newest unlifted ban for the account, expired or not;
// expiry is the service's call so lazy pruning stays in one place.
func (s *BanStore) GetActive(ctx context.Context, accountID string) (Ban, bool, error) {
	var row Ban
	err := s.db.GetContext(ctx, &row, `
		SELECT id, account_id, reason, banned_by, expires_at, created_at, lifted_at
		FROM bans
		WHERE account_id = $1 AND lifted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, accountID)
	if err == sql.ErrNoRows {
		return Ban{}, false, nil
	}
	if err != nil {
		return Ban{}, false, err
	}
	return row, true, nil
}

func (s *BanStore) List(ctx context.Context, limit, offset int) ([]Ban, error) {
	var rows []Ban
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, account_id, reason, banned_by, expires_at, created_at, lifted_at
		FROM bans
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
