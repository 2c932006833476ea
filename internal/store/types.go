package store

import (
	"database/sql"
	"time"
)

// Rail identifies the off-chain payment network a receipt was issued on.
// The zero value, RailAlipay, is the only rail implemented end to end today.
type Rail int32

const (
	RailAlipay Rail = 0
	RailWeChat Rail = 1
	RailBank   Rail = 2
)

// TradeStatus mirrors the on-chain escrow contract's trade status enum; the
// integer values must match the contract exactly since events decode it
// directly into this type.
type TradeStatus int32

const (
	TradeStatusPending   TradeStatus = 0
	TradeStatusSettled   TradeStatus = 1
	TradeStatusExpired   TradeStatus = 2
	TradeStatusCancelled TradeStatus = 3
)

// Order is the relay's local projection of an on-chain escrow order, kept
// current by the Chain Reconciler and enriched with off-chain payment
// account metadata supplied by the seller out-of-band.
type Order struct {
	OrderID         string
	Seller          string
	Token           string
	TotalAmount     string // decimal string, base units
	RemainingAmount string // decimal string, base units
	ExchangeRate    string // decimal string
	Rail            Rail
	AccountID       sql.NullString
	AccountName     sql.NullString
	CreatedAt       time.Time
	SyncedAt        sql.NullTime
	IsPublic        bool
	PrivateCode     sql.NullString
}

// Trade is the relay's local projection of an on-chain trade plus the
// off-chain receipt material (uploaded PDF, extracted payment info,
// generated ZK proof) that accumulates as it moves through settlement.
type Trade struct {
	TradeID          string
	OrderID          string
	Buyer            string
	Token            sql.NullString // only populated via JOIN against orders
	TokenAmount      string
	CNYAmount        string
	FeeAmount        string
	Rail             Rail
	TransactionID    sql.NullString
	PaymentTime      sql.NullString
	CreatedAt        time.Time
	ExpiresAt        int64 // unix seconds, matches the contract's uint64 deadline
	Status           TradeStatus
	EscrowTxHash     sql.NullString
	SettlementTxHash sql.NullString
	SyncedAt         sql.NullTime

	PDFFile        []byte
	PDFFilename    sql.NullString
	PDFUploadedAt  sql.NullTime

	ProofUserPublicValues []byte
	ProofAccumulator      []byte
	ProofData             []byte
	AxiomProofID          sql.NullString
	ProofGeneratedAt      sql.NullTime
	ProofJSON             sql.NullString

	SettlementError sql.NullString

	// Populated only by queries that JOIN against orders for display.
	AlipayID   sql.NullString
	AlipayName sql.NullString
}

// SyncCursor records the last block this relay has fully processed for a
// given contract address, so the reconciler can resume after a restart
// without re-scanning from genesis.
type SyncCursor struct {
	ContractAddress string
	LastBlock       uint64
	UpdatedAt       time.Time
}

// Withdrawal is an append-only record of a partial or full order withdrawal,
// kept purely for the seller-facing activity timeline.
type Withdrawal struct {
	ID             int64
	OrderID        string
	Amount         string
	RemainingAfter string
	TxHash         sql.NullString
	CreatedAt      time.Time
}

// NotificationLanguage mirrors activity.NotificationLanguage; duplicated here
// as a plain string to keep this package free of an import cycle back to
// internal/activity, which itself may want to import store's types.
type NotificationLanguage string

const (
	LanguageEnglish           NotificationLanguage = "en"
	LanguageSimplifiedChinese NotificationLanguage = "zh-CN"
	LanguageTraditionalChinese NotificationLanguage = "zh-TW"
)

// AccountEmail is a wallet's opt-in email notification preference. Keyed by
// wallet address (lowercased), not by buyer/seller role, since any wallet
// can act as either in different trades.
type AccountEmail struct {
	Wallet    string
	Email     string
	Language  NotificationLanguage
	Enabled   bool
	CreatedAt int64 // unix seconds
	UpdatedAt int64
}
