// Package settlement implements the Settlement Coordinator: the state
// machine that takes a trade from an uploaded payment receipt through to
// an on-chain settlement, or to a structured rejection a buyer can act on.
//
// A trade moves created -> receipt_uploaded -> validated -> proof_in_flight
// -> settled, with expired reachable at any point before settled (driven by
// the Chain Reconciler observing a TradeExpired event) and failed_with_code
// as an alternative terminal state when on-chain submission itself reverts.
package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/lyncz-relay/relay/internal/activity"
	"github.com/lyncz-relay/relay/internal/prover"
	"github.com/lyncz-relay/relay/internal/relayer"
	"github.com/lyncz-relay/relay/internal/store"
	"github.com/lyncz-relay/relay/internal/verifier"
)

// Re-exported so callers never need to import internal/relayer just to
// compare a validation result against a known code.
type ValidationCode = relayer.ValidationCode

const (
	CodeSuccess            = relayer.CodeSuccess
	CodeReplayAttack       = relayer.CodeReplayAttack
	CodePaymentTooOld      = relayer.CodePaymentTooOld
	CodeHashMismatch       = relayer.CodeHashMismatch
	CodeAlreadyUsed        = relayer.CodeAlreadyUsed
	CodeNotPending         = relayer.CodeNotPending
	CodeExpired            = relayer.CodeExpired
	CodeVerificationFailed = relayer.CodeVerificationFailed
)

// paymentTimeLayout is the receipt format's timestamp line, always
// expressed in China Standard Time (UTC+8) regardless of server locale.
const paymentTimeLayout = "2006-01-02 15:04:05"

var chinaStandardTime = time.FixedZone("CST", 8*60*60)

// Coordinator wires the receipt verifier, the external prover, the relayer
// gateway, and the trade store together into the validate/settle pipeline.
type Coordinator struct {
	trades     *store.TradeRepository
	orders     *store.OrderRepository
	gateway    *relayer.Gateway
	prover     *prover.Client
	dispatcher activity.Dispatcher
	logger     *log.Logger

	inflight *inFlightSet
	cache    *inputCache
}

// New constructs a Coordinator. None of its dependencies are optional.
func New(trades *store.TradeRepository, orders *store.OrderRepository, gateway *relayer.Gateway, proverClient *prover.Client, dispatcher activity.Dispatcher, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(log.Writer(), "[settlement] ", log.LstdFlags)
	}
	return &Coordinator{
		trades:     trades,
		orders:     orders,
		gateway:    gateway,
		prover:     proverClient,
		dispatcher: dispatcher,
		logger:     logger,
		inflight:   newInFlightSet(),
		cache:      newInputCache(),
	}
}

// ValidateResult is what Validate returns: a closed code plus, on SUCCESS,
// the fact that a background settle task was spawned.
type ValidateResult struct {
	Code          ValidationCode
	SettlementRun bool
}

// Validate runs the six ordered checks a freshly uploaded receipt must pass
// before this relay will spend money proving and submitting it on-chain.
// Cheap local checks run first so a malformed or malicious submission never
// reaches the expensive prover call.
func (c *Coordinator) Validate(ctx context.Context, tradeID string, pdf []byte) (ValidateResult, error) {
	result, err := c.validate(ctx, tradeID, pdf)
	if err == nil {
		validateOutcomes.WithLabelValues(string(result.Code)).Inc()
	}
	return result, err
}

func (c *Coordinator) validate(ctx context.Context, tradeID string, pdf []byte) (ValidateResult, error) {
	trade, err := c.trades.Get(ctx, tradeID)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("load trade %s: %w", tradeID, err)
	}

	if trade.Status != store.TradeStatusPending {
		return ValidateResult{Code: CodeNotPending}, nil
	}
	if time.Now().Unix() >= trade.ExpiresAt {
		return ValidateResult{Code: CodeExpired}, nil
	}

	result, err := verifier.Verify(pdf)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("parse receipt for trade %s: %w", tradeID, err)
	}
	if !result.IsValid {
		return ValidateResult{Code: CodeVerificationFailed}, nil
	}

	if _, err := c.trades.SavePDF(ctx, tradeID, pdf, fmt.Sprintf("%s.pdf", tradeID)); err != nil {
		return ValidateResult{}, fmt.Errorf("save receipt pdf for trade %s: %w", tradeID, err)
	}
	if err := c.trades.UpdatePaymentInfo(ctx, tradeID, result.Lines.TxID, result.Lines.PaymentTime); err != nil {
		return ValidateResult{}, fmt.Errorf("save payment info for trade %s: %w", tradeID, err)
	}

	used, err := c.trades.IsTransactionIDUsed(ctx, result.Lines.TxID)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("check transaction id reuse for trade %s: %w", tradeID, err)
	}
	if used {
		return ValidateResult{Code: CodeReplayAttack}, nil
	}

	paymentTime, err := time.ParseInLocation(paymentTimeLayout, result.Lines.PaymentTime, chinaStandardTime)
	if err != nil {
		return ValidateResult{Code: CodeVerificationFailed}, nil
	}
	if paymentTime.Before(trade.CreatedAt) {
		return ValidateResult{Code: CodePaymentTooOld}, nil
	}

	var orderID [32]byte
	copy(orderID[:], common32(trade.OrderID))
	onChainAccountHash, err := c.gateway.GetOrderHash(ctx, orderID)
	if err != nil {
		return ValidateResult{}, fmt.Errorf("fetch on-chain order hash for trade %s: %w", tradeID, err)
	}

	serverAmountLine := verifier.FormatAmountLine(divideBy100(trade.CNYAmount))
	expectedTimeAmount := verifier.TimeAmountHash(result.Lines.PaymentTime, serverAmountLine)
	expected := verifier.OutputHash(true, result.SignerKeyFingerprint, verifier.Digest(onChainAccountHash), result.TxIDHash, expectedTimeAmount)

	c.cache.put(tradeID, proverInput{
		receiptData: pdf,
		txIDHash:    result.TxIDHash,
		paymentTime: paymentTime,
	})

	executed, err := c.prover.Execute(ctx, prover.ExecuteRequest{
		ReceiptData: pdf,
		LineNumbers: verifier.RequiredLineNumbers[:],
	})
	if err != nil {
		return ValidateResult{}, fmt.Errorf("prover execute for trade %s: %w", tradeID, err)
	}

	if executed.Output != [32]byte(expected) {
		c.cache.delete(tradeID)
		if err := c.trades.ClearPDF(ctx, tradeID); err != nil {
			c.logger.Printf("clear receipt for trade %s after hash mismatch: %v", tradeID, err)
		}
		return ValidateResult{Code: CodeHashMismatch}, nil
	}

	c.maybeRotateKey(ctx, trade, result.SignerKeyFingerprint)

	go c.Settle(context.Background(), tradeID)
	return ValidateResult{Code: CodeSuccess, SettlementRun: true}, nil
}

// maybeRotateKey compares the receipt's signer fingerprint against the
// contract's currently registered one. A mismatch means the Alipay signer
// rotated their key since the last settlement; this relay updates the
// on-chain record optimistically so future validations recognize the new
// key, but never blocks settlement on that update succeeding.
func (c *Coordinator) maybeRotateKey(ctx context.Context, trade *store.Trade, receiptFingerprint verifier.Digest) {
	registered, err := c.gateway.GetAlipayPublicKeyHash(ctx)
	if err != nil {
		c.logger.Printf("read registered key fingerprint for trade %s: %v", trade.TradeID, err)
		return
	}
	if [32]byte(receiptFingerprint) == registered {
		return
	}

	newHash := [32]byte(receiptFingerprint)
	if _, err := c.gateway.UpdateKeyFingerprint(ctx, newHash); err != nil {
		c.logger.Printf("rotate signer key fingerprint for trade %s: %v", trade.TradeID, err)
		return
	}

	order, err := c.orders.Get(ctx, trade.OrderID)
	if err != nil {
		c.logger.Printf("load order %s to notify key rotation: %v", trade.OrderID, err)
		return
	}
	c.dispatcher.Dispatch(activity.KeyRotatedEvent{
		Wallet:     order.Seller,
		OrderID:    trade.OrderID,
		OldKeyHash: fmt.Sprintf("0x%x", registered),
		NewKeyHash: fmt.Sprintf("0x%x", newHash),
	})
}

// Settle generates the full proof and submits it on-chain. Guarded by
// InFlightSet so a trade is never being settled by two goroutines at once
// — a duplicate Validate call (the buyer double-clicking "verify") that
// races in after the first has already started settling is simply a no-op.
func (c *Coordinator) Settle(ctx context.Context, tradeID string) {
	if !c.inflight.tryAdd(tradeID) {
		return
	}
	defer c.inflight.remove(tradeID)

	input, ok := c.cache.get(tradeID)
	if !ok {
		c.logger.Printf("settle %s: no cached prover input, validate must run again", tradeID)
		return
	}
	defer c.cache.delete(tradeID)

	proved, err := c.prover.Prove(ctx, prover.ProveRequest{
		ReceiptData: input.receiptData,
		LineNumbers: verifier.RequiredLineNumbers[:],
	})
	if err != nil {
		c.saveSettlementError(ctx, tradeID, CodeVerificationFailed)
		c.logger.Printf("prove trade %s: %v", tradeID, err)
		settleOutcomes.WithLabelValues("prove_failed").Inc()
		return
	}

	if err := c.trades.SaveProof(ctx, tradeID, proved.UserPublicValues, proved.Accumulator, proved.ProofData, proved.ProofID, ""); err != nil {
		c.logger.Printf("save proof for trade %s: %v", tradeID, err)
	}

	var id [32]byte
	copy(id[:], common32(tradeID))
	// The contract recomputes H_time_amount from this value, so it must be
	// the exact line-27 string the receipt carries, not an epoch timestamp.
	paymentTime := input.paymentTime.In(chinaStandardTime).Format(paymentTimeLayout)

	var userPublicValues [32]byte
	copy(userPublicValues[:], proved.UserPublicValues)

	result, err := c.gateway.SubmitProof(ctx, id, input.txIDHash, paymentTime, userPublicValues, proved.Accumulator, proved.ProofData)
	if err != nil {
		var revertErr *relayer.RevertError
		code := CodeVerificationFailed
		if asRevertError(err, &revertErr) {
			code = revertErr.Code
		}
		c.saveSettlementError(ctx, tradeID, code)
		c.logger.Printf("submit proof for trade %s: %v", tradeID, err)
		settleOutcomes.WithLabelValues("submit_failed").Inc()
		return
	}

	if err := c.trades.UpdateSettlementTx(ctx, tradeID, result.TxHash.Hex()); err != nil {
		c.logger.Printf("record settlement tx for trade %s: %v", tradeID, err)
	}
	settleOutcomes.WithLabelValues("submitted").Inc()
	// The trade's Status field itself transitions to Settled when the
	// Chain Reconciler observes the TradeSettled event this submission
	// emits, not here — this relay never marks a trade settled before the
	// chain confirms it.
}

func (c *Coordinator) saveSettlementError(ctx context.Context, tradeID string, code ValidationCode) {
	if err := c.trades.SaveSettlementError(ctx, tradeID, string(code)); err != nil {
		c.logger.Printf("record settlement error for trade %s: %v", tradeID, err)
	}
}

func asRevertError(err error, target **relayer.RevertError) bool {
	re, ok := err.(*relayer.RevertError)
	if ok {
		*target = re
	}
	return ok
}

// divideBy100 renders a base-100 integer amount (fiat cents collapsed to
// whole units) the same way the on-chain event amounts are rendered, so
// the server-side amount line matches what the guest program expects
// verbatim.
func divideBy100(amount string) string {
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return amount
	}
	whole := new(big.Int).Div(n, big.NewInt(100))
	rem := new(big.Int).Mod(n, big.NewInt(100))
	return fmt.Sprintf("%s.%02d", whole.String(), rem.Int64())
}

// common32 decodes a 0x-prefixed hex id (trade and order ids are always
// contract-generated bytes32 values rendered as hex) into exactly 32 bytes,
// right-aligning a short value rather than assuming it is always full width.
func common32(hexID string) []byte {
	h := strings.TrimPrefix(hexID, "0x")
	if len(h)%2 == 1 {
		h = "0" + h
	}
	decoded, err := hex.DecodeString(h)
	if err != nil {
		return make([]byte, 32)
	}
	out := make([]byte, 32)
	if len(decoded) >= 32 {
		copy(out, decoded[len(decoded)-32:])
	} else {
		copy(out[32-len(decoded):], decoded)
	}
	return out
}
