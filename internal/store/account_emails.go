package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AccountEmailRepository manages opt-in email notification preferences.
// Keyed by wallet address (always lowercased before use), not by role —
// any wallet can be a buyer in one trade and a seller in another.
type AccountEmailRepository struct {
	client *Client
}

// NewAccountEmailRepository constructs an AccountEmailRepository against client.
func NewAccountEmailRepository(client *Client) *AccountEmailRepository {
	return &AccountEmailRepository{client: client}
}

// Get fetches a wallet's email preference, regardless of whether
// notifications are currently enabled. Returns ErrAccountEmailNotSet if the
// wallet has never configured one.
func (r *AccountEmailRepository) Get(ctx context.Context, wallet string) (*AccountEmail, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT wallet, email, language, enabled, "createdAt", "updatedAt"
		FROM account_emails
		WHERE wallet = $1
	`, strings.ToLower(wallet))
	return scanAccountEmail(row)
}

// GetIfEnabled fetches a wallet's email preference only if notifications
// are enabled, returning (nil, nil) otherwise — the dispatcher's lookup
// before sending any notification.
func (r *AccountEmailRepository) GetIfEnabled(ctx context.Context, wallet string) (*AccountEmail, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT wallet, email, language, enabled, "createdAt", "updatedAt"
		FROM account_emails
		WHERE wallet = $1 AND enabled = TRUE
	`, strings.ToLower(wallet))
	email, err := scanAccountEmail(row)
	if err == ErrAccountEmailNotSet {
		return nil, nil
	}
	return email, err
}

// Upsert sets or replaces a wallet's email and notification language,
// enabling notifications if they were previously disabled via the insert
// path (an existing row's enabled flag is left untouched on update, since
// toggling it is SetEnabled's job).
func (r *AccountEmailRepository) Upsert(ctx context.Context, wallet, email string, language NotificationLanguage) (*AccountEmail, error) {
	now := time.Now().UTC().Unix()
	row := r.client.DB().QueryRowContext(ctx, `
		INSERT INTO account_emails (wallet, email, language, enabled, "createdAt", "updatedAt")
		VALUES ($1, $2, $3, TRUE, $4, $4)
		ON CONFLICT (wallet) DO UPDATE SET
			email = EXCLUDED.email,
			language = EXCLUDED.language,
			"updatedAt" = EXCLUDED."updatedAt"
		RETURNING wallet, email, language, enabled, "createdAt", "updatedAt"
	`, strings.ToLower(wallet), email, string(language), now)
	return scanAccountEmail(row)
}

// SetEnabled toggles notifications for wallet without touching its email
// or language preference.
func (r *AccountEmailRepository) SetEnabled(ctx context.Context, wallet string, enabled bool) error {
	_, err := r.client.DB().ExecContext(ctx, `
		UPDATE account_emails SET enabled = $2, "updatedAt" = $3 WHERE wallet = $1
	`, strings.ToLower(wallet), enabled, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("set enabled for wallet %s: %w", wallet, err)
	}
	return nil
}

// Delete removes a wallet's email preference entirely (a full opt-out,
// distinct from SetEnabled(false)).
func (r *AccountEmailRepository) Delete(ctx context.Context, wallet string) error {
	_, err := r.client.DB().ExecContext(ctx, `DELETE FROM account_emails WHERE wallet = $1`, strings.ToLower(wallet))
	if err != nil {
		return fmt.Errorf("delete account email for wallet %s: %w", wallet, err)
	}
	return nil
}

func scanAccountEmail(row *sql.Row) (*AccountEmail, error) {
	var a AccountEmail
	var language string
	err := row.Scan(&a.Wallet, &a.Email, &language, &a.Enabled, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountEmailNotSet
	}
	if err != nil {
		return nil, fmt.Errorf("scan account email: %w", err)
	}
	a.Language = NotificationLanguage(language)
	return &a, nil
}
