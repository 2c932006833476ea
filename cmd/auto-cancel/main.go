// Command auto-cancel runs independently of relay-server: on a fixed
// interval it looks for pending trades whose payment window has passed and
// cancels each one on-chain, returning the escrowed funds to the seller's
// order pool. The relay wallet pays gas for every cancellation.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lyncz-relay/relay/internal/config"
	"github.com/lyncz-relay/relay/internal/relayer"
	"github.com/lyncz-relay/relay/internal/store"
)

// checkInterval matches the original service's 30-second poll.
const checkInterval = 30 * time.Second

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.RelayerPrivKey == "" {
		log.Fatal("RELAYER_PRIVATE_KEY is required to cancel expired trades")
	}
	log.Printf("starting auto-cancel: %s", cfg.Summary())

	dbClient, err := store.NewClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer dbClient.Close()
	trades := store.NewTradeRepository(dbClient)
	log.Println("database connected")

	gateway, err := relayer.New(cfg.RPCURL, cfg.ChainID, common.HexToAddress(cfg.EscrowAddress), cfg.RelayerPrivKey)
	if err != nil {
		log.Fatalf("init relayer gateway: %v", err)
	}
	defer gateway.Close()
	log.Printf("relayer gateway ready, address=%s", gateway.Address().Hex())

	log.Printf("monitoring loop starting, check every %s", checkInterval)

	var totalCancelled uint64
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for range ticker.C {
		cancelled, err := checkAndCancelExpired(context.Background(), trades, gateway)
		if err != nil {
			log.Printf("error checking expired trades: %v", err)
			continue
		}
		if cancelled > 0 {
			totalCancelled += cancelled
			log.Printf("cancelled %d trades, total %d", cancelled, totalCancelled)
		}
	}
}

// checkAndCancelExpired queries every expired pending trade and cancels
// each in turn. A single trade's failure (already cancelled by someone
// else, settled just in time, or a genuine revert) never stops the rest
// of the batch.
func checkAndCancelExpired(ctx context.Context, trades *store.TradeRepository, gateway *relayer.Gateway) (uint64, error) {
	expired, err := trades.GetExpiredPendingTrades(ctx)
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}
	log.Printf("found %d expired trades to cancel", len(expired))

	var cancelled uint64
	for _, trade := range expired {
		tradeID := parseTradeID(trade.TradeID)
		log.Printf("cancelling trade: %s", trade.TradeID)

		result, err := gateway.CancelExpired(ctx, tradeID)
		if err != nil {
			log.Printf("failed to cancel trade %s: %v", trade.TradeID, err)
			continue
		}
		if result.Reverted {
			log.Printf("cancel reverted for trade %s: tx %s", trade.TradeID, result.TxHash.Hex())
			continue
		}

		log.Printf("trade %s cancelled: tx=%s gas_used=%d", trade.TradeID, result.TxHash.Hex(), result.GasUsed)
		if err := trades.UpdateStatus(ctx, trade.TradeID, store.TradeStatusExpired); err != nil {
			log.Printf("failed to update db status for %s: %v", trade.TradeID, err)
		}
		cancelled++
	}
	return cancelled, nil
}

// parseTradeID decodes a 0x-prefixed trade id into exactly 32 bytes. Trade
// ids this loop sees always came back from the contract's own event logs,
// so a malformed value here indicates store corruption, not user input;
// zero-filling rather than erroring keeps one bad row from killing the
// whole batch, and the subsequent on-chain call will simply not match any
// real trade and revert.
func parseTradeID(hexID string) [32]byte {
	var id [32]byte
	b := common.FromHex(hexID)
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(id[32-len(b):], b)
	return id
}
