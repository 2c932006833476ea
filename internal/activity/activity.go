// Package activity models the closed set of activity-timeline entries and
// outbound notification events the relay emits, per the variant-modeling
// note in the design: each is a closed tagged union realized as a sealed
// Go interface rather than a string-tagged struct.
package activity

import "time"

// Entry is the closed activity-timeline sum type: trade-settled,
// pending-trade, expired-trade, or withdrawal. Only types in this package
// implement it.
type Entry interface {
	entry()
	OccurredAt() time.Time
}

// TradeSettled records a trade reaching its terminal settled state.
type TradeSettled struct {
	TradeID       string
	SettlementTx  string
	SettledAt     time.Time
}

func (TradeSettled) entry()                  {}
func (e TradeSettled) OccurredAt() time.Time { return e.SettledAt }

// PendingTrade records a trade created and awaiting a receipt.
type PendingTrade struct {
	TradeID   string
	OrderID   string
	CreatedAt time.Time
}

func (PendingTrade) entry()                  {}
func (e PendingTrade) OccurredAt() time.Time { return e.CreatedAt }

// ExpiredTrade records a trade that passed its payment window unsettled.
type ExpiredTrade struct {
	TradeID   string
	OrderID   string
	ExpiredAt time.Time
}

func (ExpiredTrade) entry()                  {}
func (e ExpiredTrade) OccurredAt() time.Time { return e.ExpiredAt }

// Withdrawal records a seller withdrawing remaining order liquidity.
type Withdrawal struct {
	OrderID     string
	Amount      string
	WithdrawnAt time.Time
}

func (Withdrawal) entry()                  {}
func (e Withdrawal) OccurredAt() time.Time { return e.WithdrawnAt }

// NotificationLanguage is the closed set of languages an account may
// request notification emails in.
type NotificationLanguage string

const (
	LanguageEnglish       NotificationLanguage = "en"
	LanguageSimplifiedZH  NotificationLanguage = "zh-CN"
	LanguageTraditionalZH NotificationLanguage = "zh-TW"
)

// Event is the closed email-event sum type dispatched to the (external,
// out-of-scope) notification renderer. The relay only produces these
// values and hands them to a Dispatcher; rendering and delivery are
// external collaborators per the purpose-and-scope non-goals.
type Event interface {
	event()
}

// TradeSettledEvent notifies a buyer or seller their trade settled
// on-chain. Role distinguishes which side's template to render.
type TradeSettledEvent struct {
	Wallet       string
	Language     NotificationLanguage
	Role         SettlementRole
	TradeID      string
	SettlementTx string
	TokenAmount  string
	FiatAmount   string
	FeeAmount    string
}

func (TradeSettledEvent) event() {}

// SettlementRole distinguishes the two notification templates a settled
// trade triggers, one per counterparty.
type SettlementRole int

const (
	RoleSeller SettlementRole = iota
	RoleBuyer
)

// OrderCreatedEvent notifies a seller their order is live, once the
// plain-text account fields have been verified against the on-chain
// account-lines commitment. Never sent when that verification fails.
type OrderCreatedEvent struct {
	Wallet  string
	Language NotificationLanguage
	OrderID string
}

func (OrderCreatedEvent) event() {}

// WithdrawalEvent notifies a seller of a processed withdrawal from their
// order's remaining liquidity. Informational only — the withdrawal is
// already recorded regardless of whether this send succeeds.
type WithdrawalEvent struct {
	Wallet          string
	Language        NotificationLanguage
	OrderID         string
	WithdrawnAmount string
	TxHash          string
}

func (WithdrawalEvent) event() {}

// ExchangeRateUpdatedEvent notifies a seller their order's exchange rate
// changed. Rates are carried in fiat-cents-per-token form on-chain; the
// caller is expected to have already divided by 100 before populating
// OldRate/NewRate.
type ExchangeRateUpdatedEvent struct {
	Wallet   string
	Language NotificationLanguage
	OrderID  string
	OldRate  string
	NewRate  string
}

func (ExchangeRateUpdatedEvent) event() {}

// KeyRotatedEvent notifies a seller their receipt signer key rotated, out
// of band from the settlement itself, so a compromised key is visible even
// if settlement proceeds.
type KeyRotatedEvent struct {
	Wallet      string
	Language    NotificationLanguage
	OrderID     string
	OldKeyHash  string
	NewKeyHash  string
}

func (KeyRotatedEvent) event() {}

// SecurityAlarmEvent notifies operators of a detected commitment mismatch
// between an event-reported hash and a previously stored plain-field
// commitment, per the Chain Reconciler's OrderCreated handling rule.
type SecurityAlarmEvent struct {
	OrderID string
	Reason  string
}

func (SecurityAlarmEvent) event() {}

// Dispatcher sends an Event to whatever out-of-scope notification pipeline
// renders and delivers it. The relay depends only on this interface.
type Dispatcher interface {
	Dispatch(e Event)
}
