package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WithdrawalRepository is an append-only log of order withdrawals, kept
// purely to render the seller-facing order activity timeline.
type WithdrawalRepository struct {
	client *Client
}

// NewWithdrawalRepository constructs a WithdrawalRepository against client.
func NewWithdrawalRepository(client *Client) *WithdrawalRepository {
	return &WithdrawalRepository{client: client}
}

// Create appends a withdrawal record. txHash is empty for withdrawals that
// happen as a side effect of another on-chain call rather than their own
// transaction.
func (r *WithdrawalRepository) Create(ctx context.Context, orderID, amount, remainingAfter, txHash string) error {
	var txHashArg sql.NullString
	if txHash != "" {
		txHashArg = sql.NullString{String: txHash, Valid: true}
	}
	_, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO withdrawals ("orderId", "amount", "remainingAfter", "txHash")
		VALUES ($1, $2::numeric, $3::numeric, $4)
	`, orderID, amount, remainingAfter, txHashArg)
	if err != nil {
		return fmt.Errorf("create withdrawal for order %s: %w", orderID, err)
	}
	return nil
}

// GetByOrder lists withdrawals for order, newest first.
func (r *WithdrawalRepository) GetByOrder(ctx context.Context, orderID string) ([]*Withdrawal, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT id, "orderId", "amount"::text, "remainingAfter"::text, "txHash", "createdAt"
		FROM withdrawals
		WHERE "orderId" = $1
		ORDER BY "createdAt" DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query withdrawals for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var out []*Withdrawal
	for rows.Next() {
		var w Withdrawal
		if err := rows.Scan(&w.ID, &w.OrderID, &w.Amount, &w.RemainingAfter, &w.TxHash, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal row: %w", err)
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal rows: %w", err)
	}
	return out, nil
}
