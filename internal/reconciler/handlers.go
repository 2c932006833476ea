package reconciler

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lyncz-relay/relay/internal/activity"
	"github.com/lyncz-relay/relay/internal/store"
	"github.com/lyncz-relay/relay/internal/verifier"
)

// handleOrderCreated projects a new order and, if the seller's plain-text
// payment fields already arrived (a race against the out-of-band
// payment-info call), re-verifies them against the on-chain
// accountLinesHash before notifying the seller. A mismatch is a security
// event, not a silent skip: it means either the event or the payment-info
// submission lied about the account fields.
func (r *Reconciler) handleOrderCreated(ctx context.Context, l types.Log) error {
	ev, err := decodeOrderCreated(r.abi, l)
	if err != nil {
		return err
	}
	orderID := ev.OrderID.Hex()

	err = r.orders.Create(ctx, &store.Order{
		OrderID:         orderID,
		Seller:          strings.ToLower(ev.Seller.Hex()),
		Token:           strings.ToLower(ev.Token.Hex()),
		TotalAmount:     ev.TotalAmount.String(),
		RemainingAmount: ev.TotalAmount.String(),
		ExchangeRate:    ev.ExchangeRate.String(),
		Rail:            store.Rail(ev.Rail),
		CreatedAt:       time.Now().UTC(),
		IsPublic:        ev.IsPublic,
	})
	if err != nil {
		return fmt.Errorf("project order %s: %w", orderID, err)
	}

	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("reload order %s: %w", orderID, err)
	}
	if !order.AccountID.Valid || order.AccountID.String == "" {
		return nil // payment info not submitted yet; nothing to verify
	}

	computed := verifier.AccountLinesHashFromPlainFields(order.AccountName.String, order.AccountID.String)
	onChain := ev.AccountLinesHash
	if !digestMatchesHash(computed, onChain) {
		r.dispatcher.Dispatch(activity.SecurityAlarmEvent{
			OrderID: orderID,
			Reason:  "accountLinesHash mismatch between submitted payment info and on-chain commitment",
		})
		return nil
	}

	r.sendNotification(ctx, order.Seller, func(lang activity.NotificationLanguage) activity.Event {
		return activity.OrderCreatedEvent{Wallet: order.Seller, Language: lang, OrderID: orderID}
	})
	return nil
}

// handleOrderWithdrawn adjusts the order's remaining liquidity and records
// the withdrawal for the activity timeline. The notification email is
// best-effort: the withdrawal itself is already durably recorded by the
// time this fires.
func (r *Reconciler) handleOrderWithdrawn(ctx context.Context, l types.Log) error {
	ev, err := decodeOrderWithdrawn(r.abi, l)
	if err != nil {
		return err
	}
	orderID := ev.OrderID.Hex()

	negWithdrawn := new(big.Int).Neg(ev.WithdrawnAmount)
	if err := r.orders.AdjustRemainingAmount(ctx, orderID, negWithdrawn.String()); err != nil {
		return fmt.Errorf("adjust remaining amount for order %s: %w", orderID, err)
	}

	if err := r.withdrawals.Create(ctx, orderID, ev.WithdrawnAmount.String(), ev.RemainingAmount.String(), l.TxHash.Hex()); err != nil {
		return fmt.Errorf("record withdrawal for order %s: %w", orderID, err)
	}

	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		r.logger.Printf("withdrawal notification: reload order %s: %v", orderID, err)
		return nil
	}
	r.sendNotification(ctx, order.Seller, func(lang activity.NotificationLanguage) activity.Event {
		return activity.WithdrawalEvent{
			Wallet:          order.Seller,
			Language:        lang,
			OrderID:         orderID,
			WithdrawnAmount: ev.WithdrawnAmount.String(),
			TxHash:          l.TxHash.Hex(),
		}
	})
	return nil
}

// handleExchangeRateUpdated updates the order's posted rate and notifies
// the seller. On-chain rates are fiat cents per token; the email shows the
// human-scale rate, dividing by 100.
func (r *Reconciler) handleExchangeRateUpdated(ctx context.Context, l types.Log) error {
	ev, err := decodeExchangeRateUpdated(r.abi, l)
	if err != nil {
		return err
	}
	orderID := ev.OrderID.Hex()

	if err := r.orders.UpdateExchangeRate(ctx, orderID, ev.NewRate.String()); err != nil {
		return fmt.Errorf("update exchange rate for order %s: %w", orderID, err)
	}

	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		r.logger.Printf("exchange rate notification: reload order %s: %v", orderID, err)
		return nil
	}
	r.sendNotification(ctx, order.Seller, func(lang activity.NotificationLanguage) activity.Event {
		return activity.ExchangeRateUpdatedEvent{
			Wallet:   order.Seller,
			Language: lang,
			OrderID:  orderID,
			OldRate:  divideBy100(ev.OldRate),
			NewRate:  divideBy100(ev.NewRate),
		}
	})
	return nil
}

// handleAccountLinesHashUpdated is retained for audit purposes only: the
// frontend no longer exposes a way to change payment account fields after
// an order is live, so this handler just logs the change rather than
// acting on it.
func (r *Reconciler) handleAccountLinesHashUpdated(ctx context.Context, l types.Log) error {
	ev, err := decodeAccountLinesHashUpdated(r.abi, l)
	if err != nil {
		return err
	}
	r.logger.Printf("order %s accountLinesHash changed on-chain: %s -> %s (no longer actionable, logged for audit)",
		ev.OrderID.Hex(), ev.OldHash.Hex(), ev.NewHash.Hex())
	return nil
}

// handleTradeCreated projects a new pending trade and locks the matching
// liquidity out of the order's remaining amount. No email is sent here;
// buyers and sellers see pending trades directly in their activity
// timeline instead.
func (r *Reconciler) handleTradeCreated(ctx context.Context, l types.Log) error {
	ev, err := decodeTradeCreated(r.abi, l)
	if err != nil {
		return err
	}
	tradeID := ev.TradeID.Hex()
	orderID := ev.OrderID.Hex()

	rail := store.RailAlipay
	if order, err := r.orders.Get(ctx, orderID); err == nil {
		rail = order.Rail
	} else if err != store.ErrOrderNotFound {
		return fmt.Errorf("lookup order %s for trade %s: %w", orderID, tradeID, err)
	}

	err = r.trades.Create(ctx, &store.Trade{
		TradeID:     tradeID,
		OrderID:     orderID,
		Buyer:       strings.ToLower(ev.Buyer.Hex()),
		TokenAmount: ev.TokenAmount.String(),
		CNYAmount:   ev.FiatAmount.String(),
		FeeAmount:   ev.FeeAmount.String(),
		Rail:        rail,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   ev.ExpiresAt.Int64(),
		Status:      store.TradeStatusPending,
	})
	if err != nil {
		return fmt.Errorf("project trade %s: %w", tradeID, err)
	}

	locked := new(big.Int).Add(ev.TokenAmount, ev.FeeAmount)
	negLocked := new(big.Int).Neg(locked)
	if err := r.orders.AdjustRemainingAmount(ctx, orderID, negLocked.String()); err != nil {
		return fmt.Errorf("lock liquidity for trade %s: %w", tradeID, err)
	}
	return nil
}

// handleTradeSettled marks a trade settled and notifies both counterparties.
// feeAmount falls back to 1% of the token amount if the stored trade
// predates fee tracking.
func (r *Reconciler) handleTradeSettled(ctx context.Context, l types.Log) error {
	ev, err := decodeTradeSettled(r.abi, l)
	if err != nil {
		return err
	}
	tradeID := ev.TradeID.Hex()

	if err := r.trades.UpdateStatus(ctx, tradeID, store.TradeStatusSettled); err != nil {
		return fmt.Errorf("settle trade %s: %w", tradeID, err)
	}
	if err := r.trades.UpdateSettlementTx(ctx, tradeID, l.TxHash.Hex()); err != nil {
		return fmt.Errorf("record settlement tx for trade %s: %w", tradeID, err)
	}

	trade, err := r.trades.Get(ctx, tradeID)
	if err != nil {
		r.logger.Printf("settlement notification: reload trade %s: %v", tradeID, err)
		return nil
	}
	feeAmount := trade.FeeAmount
	if feeAmount == "" || feeAmount == "0" {
		if tokenAmount, ok := new(big.Int).SetString(trade.TokenAmount, 10); ok {
			feeAmount = new(big.Int).Div(tokenAmount, big.NewInt(100)).String()
		}
	}

	order, err := r.orders.Get(ctx, trade.OrderID)
	if err != nil {
		r.logger.Printf("settlement notification: reload order %s: %v", trade.OrderID, err)
	} else {
		r.sendNotification(ctx, order.Seller, func(lang activity.NotificationLanguage) activity.Event {
			return activity.TradeSettledEvent{
				Wallet: order.Seller, Language: lang, Role: activity.RoleSeller,
				TradeID: tradeID, SettlementTx: l.TxHash.Hex(),
				TokenAmount: trade.TokenAmount, FiatAmount: trade.CNYAmount, FeeAmount: feeAmount,
			}
		})
	}
	r.sendNotification(ctx, trade.Buyer, func(lang activity.NotificationLanguage) activity.Event {
		return activity.TradeSettledEvent{
			Wallet: trade.Buyer, Language: lang, Role: activity.RoleBuyer,
			TradeID: tradeID, SettlementTx: l.TxHash.Hex(),
			TokenAmount: trade.TokenAmount, FiatAmount: trade.CNYAmount, FeeAmount: feeAmount,
		}
	})
	return nil
}

// handleTradeExpired marks a trade expired and returns its locked
// liquidity (including the fee, which was never actually collected) to
// the order. No email: expired trades surface in the activity timeline.
func (r *Reconciler) handleTradeExpired(ctx context.Context, l types.Log) error {
	ev, err := decodeTradeExpired(r.abi, l)
	if err != nil {
		return err
	}
	tradeID := ev.TradeID.Hex()
	orderID := ev.OrderID.Hex()

	if err := r.trades.UpdateStatus(ctx, tradeID, store.TradeStatusExpired); err != nil {
		return fmt.Errorf("expire trade %s: %w", tradeID, err)
	}
	if err := r.orders.AdjustRemainingAmount(ctx, orderID, ev.TotalReturned.String()); err != nil {
		return fmt.Errorf("return liquidity for expired trade %s: %w", tradeID, err)
	}
	return nil
}

func digestMatchesHash(d verifier.Digest, h [32]byte) bool {
	for i := range d {
		if d[i] != h[i] {
			return false
		}
	}
	return true
}

func divideBy100(n *big.Int) string {
	whole := new(big.Int).Div(n, big.NewInt(100))
	rem := new(big.Int).Mod(n, big.NewInt(100))
	return fmt.Sprintf("%s.%02d", whole.String(), rem.Int64())
}
