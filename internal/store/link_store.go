package store

import "context"

// LinkStore records which platform user each game account belongs to, the
// association compliance asks for when state is exported or erased.
type LinkStore struct {
	db DB
}

func NewLinkStore(db DB) *LinkStore {
	return &LinkStore{db: db}
}

func (s *LinkStore) Associate(ctx context.Context, accountID, platformUserID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_links (account_id, platform_user_id, linked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (account_id)
		DO UPDATE SET platform_user_id = EXCLUDED.platform_user_id, linked_at = NOW()
	`, accountID, platformUserID)
	return err
}

func (s *LinkStore) PlatformUser(ctx context.Context, accountID string) (string, error) {
	var platformUserID string
	err := s.db.GetContext(ctx, &platformUserID, `
		SELECT platform_user_id FROM account_links WHERE account_id = $1
	`, accountID)
	return platformUserID, err
}
