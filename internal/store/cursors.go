package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CursorRepository persists the Chain Reconciler's per-contract sync
// cursor, so a restart resumes scanning from the last fully-processed
// block instead of genesis.
type CursorRepository struct {
	client *Client
}

// NewCursorRepository constructs a CursorRepository against client.
func NewCursorRepository(client *Client) *CursorRepository {
	return &CursorRepository{client: client}
}

// Get returns the last processed block for contractAddress, or (0, false)
// if the reconciler has never recorded a cursor for it.
func (r *CursorRepository) Get(ctx context.Context, contractAddress string) (uint64, bool, error) {
	var lastBlock int64
	err := r.client.DB().QueryRowContext(ctx, `
		SELECT "lastBlock" FROM sync_cursors WHERE "contractAddress" = $1
	`, contractAddress).Scan(&lastBlock)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get sync cursor for %s: %w", contractAddress, err)
	}
	return uint64(lastBlock), true, nil
}

// Advance moves the cursor forward to block. Callers must only call this
// with a block number greater than or equal to the current cursor — the
// WHERE clause enforces monotonicity even under a racing duplicate poll.
func (r *CursorRepository) Advance(ctx context.Context, contractAddress string, block uint64) error {
	_, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO sync_cursors ("contractAddress", "lastBlock", "updatedAt")
		VALUES ($1, $2, now())
		ON CONFLICT ("contractAddress") DO UPDATE SET
			"lastBlock" = EXCLUDED."lastBlock",
			"updatedAt" = EXCLUDED."updatedAt"
		WHERE sync_cursors."lastBlock" <= EXCLUDED."lastBlock"
	`, contractAddress, int64(block))
	if err != nil {
		return fmt.Errorf("advance sync cursor for %s to %d: %w", contractAddress, block, err)
	}
	return nil
}
