package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"collectibles/internal/profile"
)

var (
	// ErrCorrupted reports a row whose snapshot no longer decodes. The caller
	// serves the account best-effort from a repaired template.
	ErrCorrupted = errors.New("profile snapshot corrupted")
	// ErrOwnedElsewhere is the take-over signal: another process claimed the
	// record after we checked it out.
	ErrOwnedElsewhere = errors.New("profile owned elsewhere")
)

// SnapshotStore persists whole profile snapshots as JSONB rows, one per
// account, guarded by an owner token so two processes never both believe
// they hold the same record.
type SnapshotStore struct {
	db DB
}

type snapshotRow struct {
	AccountID     string `db:"account_id"`
	Snapshot      []byte `db:"snapshot"`
	SchemaVersion int    `db:"schema_version"`
	OwnerToken    string `db:"owner_token"`
}

func NewSnapshotStore(db DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// Load returns nil, nil when no record exists for the account.
func (s *SnapshotStore) Load(ctx context.Context, accountID string) (*profile.Profile, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT account_id, snapshot, schema_version, owner_token
		FROM profiles
		WHERE account_id = $1
	`, accountID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p profile.Profile
	if err := json.Unmarshal(row.Snapshot, &p); err != nil {
		return nil, ErrCorrupted
	}
	return &p, nil
}

// Claim stamps this process as the owner of the record, creating the row
// when the account has never been saved.
func (s *SnapshotStore) Claim(ctx context.Context, accountID, ownerToken string, p *profile.Profile) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (account_id, snapshot, schema_version, owner_token, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (account_id)
		DO UPDATE SET owner_token = EXCLUDED.owner_token, updated_at = NOW()
	`, accountID, snapshot, p.SchemaVersion, ownerToken)
	return err
}

// Save writes the snapshot only while the owner token still matches. A zero
// row count means another process took the record over.
func (s *SnapshotStore) Save(ctx context.Context, accountID, ownerToken string, p *profile.Profile) error {
	snapshot, err := json.Marshal(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET snapshot = $1, schema_version = $2, updated_at = NOW()
		WHERE account_id = $3 AND owner_token = $4
	`, snapshot, p.SchemaVersion, accountID, ownerToken)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOwnedElsewhere
	}
	return nil
}

// Release clears the owner token so the next checkout anywhere wins cleanly.
func (s *SnapshotStore) Release(ctx context.Context, accountID, ownerToken string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET owner_token = '', updated_at = NOW()
		WHERE account_id = $1 AND owner_token = $2
	`, accountID, ownerToken)
	return err
}
