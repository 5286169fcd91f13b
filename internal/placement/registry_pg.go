package placement

import (
	"context"
	"database/sql"
	"fmt"
)

// PGRegistry implements KeyRegistry on the storage_key_claims table.
type PGRegistry struct {
	DB *sql.DB
}

func (r *PGRegistry) Claim(ctx context.Context, key, documentID string) (string, error) {
	const insert = `
INSERT INTO storage_key_claims (storage_key, document_id, claimed_at)
VALUES ($1, $2, now())
ON CONFLICT (storage_key) DO NOTHING`
	if _, err := r.DB.ExecContext(ctx, insert, key, documentID); err != nil {
		return "", fmt.Errorf("claim storage key: %w", err)
	}

	const owner = `SELECT document_id FROM storage_key_claims WHERE storage_key = $1`
	var ownerID string
	if err := r.DB.QueryRowContext(ctx, owner, key).Scan(&ownerID); err != nil {
		return "", fmt.Errorf("read storage key owner: %w", err)
	}
	return ownerID, nil
}

func (r *PGRegistry) Release(ctx context.Context, key, documentID string) error {
	const query = `DELETE FROM storage_key_claims WHERE storage_key = $1 AND document_id = $2`
	_, err := r.DB.ExecContext(ctx, query, key, documentID)
	return err
}
