package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TradeRepository persists the Trade projection driven by chain events, and
// accumulates the off-chain receipt material (PDF, extracted payment info,
// generated proof) a trade collects on its way through settlement.
type TradeRepository struct {
	client *Client
}

// NewTradeRepository constructs a TradeRepository against client.
func NewTradeRepository(client *Client) *TradeRepository {
	return &TradeRepository{client: client}
}

const tradeColumns = `
	"tradeId", "orderId", "buyer", "tokenAmount"::text, "cnyAmount"::text, "feeAmount"::text,
	"rail", "transactionId", "paymentTime",
	"createdAt", "expiresAt", "status",
	"escrowTxHash", "settlementTxHash", "syncedAt",
	pdf_file, pdf_filename, pdf_uploaded_at,
	proof_user_public_values, proof_accumulator, proof_data,
	axiom_proof_id, proof_generated_at, proof_json, settlement_error`

// Create inserts a new trade from a TradeCreated event. Duplicate inserts
// (a replayed event after a reconciler restart) are silently ignored.
func (r *TradeRepository) Create(ctx context.Context, t *Trade) error {
	_, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO trades (
			"tradeId", "orderId", "buyer", "token", "tokenAmount", "cnyAmount", "feeAmount",
			"rail", "transactionId", "paymentTime",
			"createdAt", "expiresAt", "status",
			"escrowTxHash", "settlementTxHash"
		)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT ("tradeId") DO NOTHING
	`,
		t.TradeID, t.OrderID, t.Buyer, t.Token, t.TokenAmount, t.CNYAmount, t.FeeAmount,
		int32(t.Rail), t.TransactionID, t.PaymentTime,
		t.CreatedAt, t.ExpiresAt, int32(t.Status),
		t.EscrowTxHash, t.SettlementTxHash,
	)
	if err != nil {
		return fmt.Errorf("create trade %s: %w", t.TradeID, err)
	}
	return nil
}

// Get fetches a single trade by ID. The Token, AlipayID, and AlipayName
// fields are not populated here; use GetAllTrades or the order-scoped
// queries when those are needed.
func (r *TradeRepository) Get(ctx context.Context, tradeID string) (*Trade, error) {
	row := r.client.DB().QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE "tradeId" = $1`, tradeID)
	return scanTrade(row)
}

// UpdateStatus transitions a trade's status, driven by TradeSettled or
// TradeExpired events.
func (r *TradeRepository) UpdateStatus(ctx context.Context, tradeID string, newStatus TradeStatus) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE trades SET "status" = $1 WHERE "tradeId" = $2`, int32(newStatus), tradeID)
	if err != nil {
		return fmt.Errorf("update status for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// UpdateSettlementTx records the on-chain settlement transaction hash.
func (r *TradeRepository) UpdateSettlementTx(ctx context.Context, tradeID, txHash string) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE trades SET "settlementTxHash" = $1 WHERE "tradeId" = $2`, txHash, tradeID)
	if err != nil {
		return fmt.Errorf("update settlement tx for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// SavePDF stores the uploaded receipt PDF and returns the upload timestamp.
func (r *TradeRepository) SavePDF(ctx context.Context, tradeID string, pdfData []byte, filename string) (time.Time, error) {
	uploadedAt := time.Now().UTC()
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE trades SET pdf_file = $1, pdf_filename = $2, pdf_uploaded_at = $3
		WHERE "tradeId" = $4
	`, pdfData, filename, uploadedAt, tradeID)
	if err != nil {
		return time.Time{}, fmt.Errorf("save pdf for trade %s: %w", tradeID, err)
	}
	if err := requireRowsAffected(res, ErrTradeNotFound); err != nil {
		return time.Time{}, err
	}
	return uploadedAt, nil
}

// ClearPDF wipes the uploaded PDF and extracted payment info after a failed
// validation, letting the buyer retry with a different receipt.
func (r *TradeRepository) ClearPDF(ctx context.Context, tradeID string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE trades
		SET pdf_file = NULL, pdf_filename = NULL, pdf_uploaded_at = NULL,
			"transactionId" = NULL, "paymentTime" = NULL
		WHERE "tradeId" = $1
	`, tradeID)
	if err != nil {
		return fmt.Errorf("clear pdf for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// SaveProof stores a generated ZK proof and its Axiom submission bookkeeping.
func (r *TradeRepository) SaveProof(ctx context.Context, tradeID string, userPublicValues, accumulator, proofData []byte, axiomProofID, proofJSON string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE trades
		SET proof_user_public_values = $1,
			proof_accumulator = $2,
			proof_data = $3,
			axiom_proof_id = $4,
			proof_generated_at = $5,
			proof_json = $6
		WHERE "tradeId" = $7
	`, userPublicValues, accumulator, proofData, axiomProofID, time.Now().UTC(), proofJSON, tradeID)
	if err != nil {
		return fmt.Errorf("save proof for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// UpdatePaymentInfo records the transaction ID and payment time extracted
// from a verified receipt.
func (r *TradeRepository) UpdatePaymentInfo(ctx context.Context, tradeID, transactionID, paymentTime string) error {
	res, err := r.client.DB().ExecContext(ctx, `
		UPDATE trades SET "transactionId" = $1, "paymentTime" = $2 WHERE "tradeId" = $3
	`, transactionID, paymentTime, tradeID)
	if err != nil {
		return fmt.Errorf("update payment info for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// SaveSettlementError records the user-facing error code when an on-chain
// settlement submission reverts or otherwise fails.
func (r *TradeRepository) SaveSettlementError(ctx context.Context, tradeID, errorCode string) error {
	res, err := r.client.DB().ExecContext(ctx,
		`UPDATE trades SET settlement_error = $1 WHERE "tradeId" = $2`, errorCode, tradeID)
	if err != nil {
		return fmt.Errorf("save settlement error for trade %s: %w", tradeID, err)
	}
	return requireRowsAffected(res, ErrTradeNotFound)
}

// IsTransactionIDUsed reports whether transactionID already belongs to a
// settled trade — the server-side half of the anti-replay check alongside
// the on-chain usedTransactionIds mapping.
func (r *TradeRepository) IsTransactionIDUsed(ctx context.Context, transactionID string) (bool, error) {
	var exists int
	err := r.client.DB().QueryRowContext(ctx, `
		SELECT 1 FROM trades WHERE "transactionId" = $1 AND status = $2 LIMIT 1
	`, transactionID, int32(TradeStatusSettled)).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check transaction id usage: %w", err)
	}
	return true, nil
}

// GetExpiredPendingTrades lists every still-pending trade whose deadline has
// passed, oldest first — the auto-cancel loop's work queue.
func (r *TradeRepository) GetExpiredPendingTrades(ctx context.Context) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE status = $1 AND "expiresAt" < EXTRACT(EPOCH FROM NOW())::bigint
		ORDER BY "expiresAt" ASC
	`, int32(TradeStatusPending))
	if err != nil {
		return nil, fmt.Errorf("query expired pending trades: %w", err)
	}
	defer rows.Close()
	return scanTrades(rows)
}

// GetAllTrades lists the 100 most recent trades across every order, for
// operator debugging, joined against orders for display-only fields.
func (r *TradeRepository) GetAllTrades(ctx context.Context) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+joinedTradeColumns+`
		FROM trades t
		LEFT JOIN orders o ON t."orderId" = o."orderId"
		ORDER BY t."createdAt" DESC
		LIMIT 100
	`)
	if err != nil {
		return nil, fmt.Errorf("query all trades: %w", err)
	}
	defer rows.Close()
	return scanJoinedTrades(rows)
}

// GetTradesByBuyer lists every trade where wallet is the buyer.
func (r *TradeRepository) GetTradesByBuyer(ctx context.Context, wallet string) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+joinedTradeColumns+`
		FROM trades t
		LEFT JOIN orders o ON t."orderId" = o."orderId"
		WHERE t.buyer = $1
		ORDER BY t."createdAt" DESC
	`, wallet)
	if err != nil {
		return nil, fmt.Errorf("query trades by buyer %s: %w", wallet, err)
	}
	defer rows.Close()
	return scanJoinedTrades(rows)
}

// GetTradesBySeller lists every trade against an order owned by wallet.
func (r *TradeRepository) GetTradesBySeller(ctx context.Context, wallet string) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+joinedTradeColumns+`
		FROM trades t
		LEFT JOIN orders o ON t."orderId" = o."orderId"
		WHERE o.seller = $1
		ORDER BY t."createdAt" DESC
	`, wallet)
	if err != nil {
		return nil, fmt.Errorf("query trades by seller %s: %w", wallet, err)
	}
	defer rows.Close()
	return scanJoinedTrades(rows)
}

// GetSettledByOrder lists settled trades for order, newest first, for the
// order activity timeline.
func (r *TradeRepository) GetSettledByOrder(ctx context.Context, orderID string) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+joinedTradeColumns+`
		FROM trades t
		LEFT JOIN orders o ON t."orderId" = o."orderId"
		WHERE t."orderId" = $1 AND t.status = $2
		ORDER BY t."createdAt" DESC
	`, orderID, int32(TradeStatusSettled))
	if err != nil {
		return nil, fmt.Errorf("query settled trades for order %s: %w", orderID, err)
	}
	defer rows.Close()
	return scanJoinedTrades(rows)
}

// GetAllByOrder lists every trade for order regardless of status, newest
// first, so the timeline can also show pending trades.
func (r *TradeRepository) GetAllByOrder(ctx context.Context, orderID string) ([]*Trade, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT `+joinedTradeColumns+`
		FROM trades t
		LEFT JOIN orders o ON t."orderId" = o."orderId"
		WHERE t."orderId" = $1
		ORDER BY t."createdAt" DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query all trades for order %s: %w", orderID, err)
	}
	defer rows.Close()
	return scanJoinedTrades(rows)
}

const joinedTradeColumns = `
	t."tradeId", t."orderId", t.buyer, t."tokenAmount"::text, t."cnyAmount"::text, t."feeAmount"::text,
	t.rail, t."transactionId", t."paymentTime",
	t."createdAt", t."expiresAt", t.status,
	t."escrowTxHash", t."settlementTxHash", t."syncedAt",
	t.pdf_file, t.pdf_filename, t.pdf_uploaded_at,
	t.proof_user_public_values, t.proof_accumulator, t.proof_data,
	t.axiom_proof_id, t.proof_generated_at, t.proof_json, t.settlement_error,
	COALESCE(t.token, o.token) as token,
	o."accountId" as alipay_id,
	o."accountName" as alipay_name`

func scanTrade(row *sql.Row) (*Trade, error) {
	var t Trade
	var rail, status int32
	err := row.Scan(
		&t.TradeID, &t.OrderID, &t.Buyer, &t.TokenAmount, &t.CNYAmount, &t.FeeAmount,
		&rail, &t.TransactionID, &t.PaymentTime,
		&t.CreatedAt, &t.ExpiresAt, &status,
		&t.EscrowTxHash, &t.SettlementTxHash, &t.SyncedAt,
		&t.PDFFile, &t.PDFFilename, &t.PDFUploadedAt,
		&t.ProofUserPublicValues, &t.ProofAccumulator, &t.ProofData,
		&t.AxiomProofID, &t.ProofGeneratedAt, &t.ProofJSON, &t.SettlementError,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trade: %w", err)
	}
	t.Rail, t.Status = Rail(rail), TradeStatus(status)
	return &t, nil
}

func scanTrades(rows *sql.Rows) ([]*Trade, error) {
	var out []*Trade
	for rows.Next() {
		var t Trade
		var rail, status int32
		if err := rows.Scan(
			&t.TradeID, &t.OrderID, &t.Buyer, &t.TokenAmount, &t.CNYAmount, &t.FeeAmount,
			&rail, &t.TransactionID, &t.PaymentTime,
			&t.CreatedAt, &t.ExpiresAt, &status,
			&t.EscrowTxHash, &t.SettlementTxHash, &t.SyncedAt,
			&t.PDFFile, &t.PDFFilename, &t.PDFUploadedAt,
			&t.ProofUserPublicValues, &t.ProofAccumulator, &t.ProofData,
			&t.AxiomProofID, &t.ProofGeneratedAt, &t.ProofJSON, &t.SettlementError,
		); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Rail, t.Status = Rail(rail), TradeStatus(status)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return out, nil
}

func scanJoinedTrades(rows *sql.Rows) ([]*Trade, error) {
	var out []*Trade
	for rows.Next() {
		var t Trade
		var rail, status int32
		if err := rows.Scan(
			&t.TradeID, &t.OrderID, &t.Buyer, &t.TokenAmount, &t.CNYAmount, &t.FeeAmount,
			&rail, &t.TransactionID, &t.PaymentTime,
			&t.CreatedAt, &t.ExpiresAt, &status,
			&t.EscrowTxHash, &t.SettlementTxHash, &t.SyncedAt,
			&t.PDFFile, &t.PDFFilename, &t.PDFUploadedAt,
			&t.ProofUserPublicValues, &t.ProofAccumulator, &t.ProofData,
			&t.AxiomProofID, &t.ProofGeneratedAt, &t.ProofJSON, &t.SettlementError,
			&t.Token, &t.AlipayID, &t.AlipayName,
		); err != nil {
			return nil, fmt.Errorf("scan joined trade row: %w", err)
		}
		t.Rail, t.Status = Rail(rail), TradeStatus(status)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate joined trade rows: %w", err)
	}
	return out, nil
}
