package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
)

// OrderRepository persists the Order projection driven by OrderCreated and
// OrderWithdrawn chain events, plus the seller-supplied payment account
// fields that arrive out of band through the API.
type OrderRepository struct {
	client *Client
}

// NewOrderRepository constructs an OrderRepository against client.
func NewOrderRepository(client *Client) *OrderRepository {
	return &OrderRepository{client: client}
}

// Create inserts a new order, or if one already exists (a race against
// UpdatePaymentInfo's placeholder insert), updates the blockchain-
// authoritative fields while preserving any accountId/accountName already
// set by the payment-info endpoint.
func (r *OrderRepository) Create(ctx context.Context, o *Order) error {
	_, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO orders (
			"orderId", "seller", "token", "totalAmount", "remainingAmount",
			"exchangeRate", "rail", "accountId", "accountName", "createdAt", "isPublic"
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11)
		ON CONFLICT ("orderId") DO UPDATE SET
			"seller" = EXCLUDED."seller",
			"token" = EXCLUDED."token",
			"totalAmount" = EXCLUDED."totalAmount",
			"remainingAmount" = EXCLUDED."remainingAmount",
			"exchangeRate" = EXCLUDED."exchangeRate",
			"rail" = EXCLUDED."rail",
			"createdAt" = EXCLUDED."createdAt",
			"isPublic" = EXCLUDED."isPublic",
			"accountId" = CASE
				WHEN orders."accountId" IS NOT NULL AND orders."accountId" != ''
				THEN orders."accountId"
				ELSE EXCLUDED."accountId"
			END,
			"accountName" = CASE
				WHEN orders."accountName" IS NOT NULL AND orders."accountName" != ''
				THEN orders."accountName"
				ELSE EXCLUDED."accountName"
			END
	`,
		o.OrderID, o.Seller, o.Token, o.TotalAmount, o.RemainingAmount,
		o.ExchangeRate, int32(o.Rail), o.AccountID, o.AccountName, o.CreatedAt, o.IsPublic,
	)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.OrderID, err)
	}
	return nil
}

// Get fetches a single order by ID.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*Order, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT "orderId", seller, token, "totalAmount"::text, "remainingAmount"::text,
			"exchangeRate"::text, rail, "accountId", "accountName",
			"createdAt", "syncedAt", "isPublic", "privateCode"
		FROM orders
		WHERE "orderId" = $1
	`, orderID)
	return scanOrder(row)
}

// GetByPrivateCode fetches a single private order by its lookup code.
func (r *OrderRepository) GetByPrivateCode(ctx context.Context, code string) (*Order, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT "orderId", seller, token, "totalAmount"::text, "remainingAmount"::text,
			"exchangeRate"::text, rail, "accountId", "accountName",
			"createdAt", "syncedAt", "isPublic", "privateCode"
		FROM orders
		WHERE "privateCode" = $1
	`, code)
	return scanOrder(row)
}

// GetActiveOrders lists active public orders (remainingAmount > 0), cheapest
// exchange rate first, optionally filtered to a single token address.
func (r *OrderRepository) GetActiveOrders(ctx context.Context, tokenFilter string, limit int) ([]*Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if tokenFilter != "" {
		rows, err = r.client.DB().QueryContext(ctx, `
			SELECT "orderId", seller, token, "totalAmount"::text, "remainingAmount"::text,
				"exchangeRate"::text, rail, "accountId", "accountName",
				"createdAt", "syncedAt", "isPublic", "privateCode"
			FROM orders
			WHERE "remainingAmount" > 0 AND "isPublic" = true AND LOWER(token) = LOWER($1)
			ORDER BY CAST("exchangeRate" AS NUMERIC) ASC, "createdAt" ASC
			LIMIT $2
		`, tokenFilter, limit)
	} else {
		rows, err = r.client.DB().QueryContext(ctx, `
			SELECT "orderId", seller, token, "totalAmount"::text, "remainingAmount"::text,
				"exchangeRate"::text, rail, "accountId", "accountName",
				"createdAt", "syncedAt", "isPublic", "privateCode"
			FROM orders
			WHERE "remainingAmount" > 0 AND "isPublic" = true
			ORDER BY CAST("exchangeRate" AS NUMERIC) ASC, "createdAt" ASC
			LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query active orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetBySeller lists every order (public and private) owned by seller.
func (r *OrderRepository) GetBySeller(ctx context.Context, seller string) ([]*Order, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT "orderId", seller, token, "totalAmount"::text, "remainingAmount"::text,
			"exchangeRate"::text, rail, "accountId", "accountName",
			"createdAt", "syncedAt", "isPublic", "privateCode"
		FROM orders
		WHERE seller = $1
		ORDER BY "createdAt" DESC
	`, seller)
	if err != nil {
		return nil, fmt.Errorf("query orders by seller %s: %w", seller, err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// AdjustRemainingAmount applies a signed decimal delta to remainingAmount.
// Positive deltas return funds (trade expiry); negative deltas lock funds
// (partial withdrawal, new trade).
func (r *OrderRepository) AdjustRemainingAmount(ctx context.Context, orderID, delta string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE orders SET "remainingAmount" = "remainingAmount" + $1::numeric
		WHERE "orderId" = $2
	`, delta, orderID)
	if err != nil {
		return fmt.Errorf("adjust remaining amount for order %s: %w", orderID, err)
	}
	return requireRowsAffected(res, ErrOrderNotFound)
}

// UpdateExchangeRate sets a new exchange rate, driven by an
// ExchangeRateUpdated chain event.
func (r *OrderRepository) UpdateExchangeRate(ctx context.Context, orderID, newRate string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE orders SET "exchangeRate" = $1::numeric WHERE "orderId" = $2
	`, newRate, orderID)
	if err != nil {
		return fmt.Errorf("update exchange rate for order %s: %w", orderID, err)
	}
	return requireRowsAffected(res, ErrOrderNotFound)
}

// UpdatePaymentInfo sets the seller's payment account fields. If the order
// row does not exist yet (the event handler hasn't caught up), it inserts a
// placeholder row that Create's ON CONFLICT clause will later reconcile.
func (r *OrderRepository) UpdatePaymentInfo(ctx context.Context, orderID, accountID, accountName string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE orders SET "accountId" = $1, "accountName" = $2 WHERE "orderId" = $3
	`, accountID, accountName, orderID)
	if err != nil {
		return fmt.Errorf("update payment info for order %s: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment info for order %s: %w", orderID, err)
	}
	if n > 0 {
		return nil
	}

	r.client.logger.Printf("order %s does not exist yet, inserting placeholder with payment info", orderID)
	_, err = r.client.DB().ExecContext(ctx, `
		INSERT INTO orders (
			"orderId", "seller", "token", "totalAmount", "remainingAmount",
			"exchangeRate", "rail", "accountId", "accountName", "createdAt", "isPublic"
		)
		VALUES ($1, '', '', 0, 0, 0, 0, $2, $3, now(), true)
		ON CONFLICT ("orderId") DO UPDATE SET
			"accountId" = EXCLUDED."accountId",
			"accountName" = EXCLUDED."accountName"
	`, orderID, accountID, accountName)
	if err != nil {
		return fmt.Errorf("insert placeholder order %s: %w", orderID, err)
	}
	return nil
}

// SetVisibility toggles an order between public and private, minting a
// fresh six-digit private lookup code when making it private.
func (r *OrderRepository) SetVisibility(ctx context.Context, orderID string, isPublic bool) (string, error) {
	var code sql.NullString
	if !isPublic {
		generated, err := r.generateUniqueCode(ctx)
		if err != nil {
			return "", err
		}
		code = sql.NullString{String: generated, Valid: true}
	}

	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE orders SET "isPublic" = $1, "privateCode" = $2 WHERE "orderId" = $3
	`, isPublic, code, orderID)
	if err != nil {
		return "", fmt.Errorf("set visibility for order %s: %w", orderID, err)
	}
	if err := requireRowsAffected(res, ErrOrderNotFound); err != nil {
		return "", err
	}
	return code.String, nil
}

func (r *OrderRepository) generateUniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < 10; i++ {
		code := fmt.Sprintf("%06d", rand.Intn(900000)+100000)
		var exists int
		err := r.client.DB().QueryRowContext(ctx,
			`SELECT 1 FROM orders WHERE "privateCode" = $1`, code,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check private code uniqueness: %w", err)
		}
	}
	return "", ErrPrivateCodeExhausted
}

func scanOrder(row *sql.Row) (*Order, error) {
	var o Order
	var rail int32
	err := row.Scan(
		&o.OrderID, &o.Seller, &o.Token, &o.TotalAmount, &o.RemainingAmount,
		&o.ExchangeRate, &rail, &o.AccountID, &o.AccountName,
		&o.CreatedAt, &o.SyncedAt, &o.IsPublic, &o.PrivateCode,
	)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Rail = Rail(rail)
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*Order, error) {
	var out []*Order
	for rows.Next() {
		var o Order
		var rail int32
		if err := rows.Scan(
			&o.OrderID, &o.Seller, &o.Token, &o.TotalAmount, &o.RemainingAmount,
			&o.ExchangeRate, &rail, &o.AccountID, &o.AccountName,
			&o.CreatedAt, &o.SyncedAt, &o.IsPublic, &o.PrivateCode,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		o.Rail = Rail(rail)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return out, nil
}

func requireRowsAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
