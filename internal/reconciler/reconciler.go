package reconciler

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/lyncz-relay/relay/internal/activity"
	"github.com/lyncz-relay/relay/internal/store"
)

// blocksPerQuery caps how many blocks a single eth_getLogs call spans.
// Matches the original event listener's BLOCKS_PER_QUERY; unlike a
// free-tier RPC's hard per-call cap, Base's public endpoint documents no
// such limit, so this stays a generous fixed window rather than the
// provider-specific value a cheaper plan might need.
const blocksPerQuery = 200

// maxReorgDepth is how many blocks behind the chain head this reconciler
// stays, so a shallow reorg never forces it to un-process a block it
// already committed to the store.
const maxReorgDepth = 2

// pollInterval is the steady-state tick between sync_events runs.
const pollInterval = 6 * time.Second

// maxBackoff caps the exponential backoff applied after consecutive
// polling failures.
const maxBackoff = 60 * time.Second

// Config configures a Reconciler.
type Config struct {
	EthereumURL     string
	ContractAddress common.Address
	StartBlock      *uint64 // nil: resume from cursor, or chain head if no cursor exists
}

// Reconciler is the Chain Reconciler: it polls the escrow contract's event
// log on a fixed interval, replays every event it finds into the store in
// chain order, and dispatches outbound notifications as a side effect.
// One reconciler instance tracks one contract address's cursor.
type Reconciler struct {
	cfg        Config
	client     *ethclient.Client
	abi        abi.ABI
	orders      *store.OrderRepository
	trades      *store.TradeRepository
	withdrawals *store.WithdrawalRepository
	cursors     *store.CursorRepository
	emails      *store.AccountEmailRepository
	dispatcher activity.Dispatcher
	logger     *log.Logger

	mu         sync.RWMutex
	nextBlock  uint64
}

// New dials the configured RPC endpoint and prepares a Reconciler. It does
// not start polling; call Run for that.
func New(cfg Config, repos *store.Repositories, dispatcher activity.Dispatcher, logger *log.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[reconciler] ", log.LstdFlags)
	}
	client, err := ethclient.Dial(cfg.EthereumURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	contractABI, err := parseEscrowABI()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	return &Reconciler{
		cfg:         cfg,
		client:      client,
		abi:         contractABI,
		orders:      repos.Orders,
		trades:      repos.Trades,
		withdrawals: repos.Withdrawals,
		cursors:     repos.Cursors,
		emails:      repos.AccountEmail,
		dispatcher:  dispatcher,
		logger:      logger,
	}, nil
}

// Close releases the underlying RPC connection.
func (r *Reconciler) Close() { r.client.Close() }

// Run polls until ctx is cancelled. It never returns a non-nil error for a
// transient sync failure — those are logged and backed off — only for
// unrecoverable setup failures (resolving the starting block).
func (r *Reconciler) Run(ctx context.Context) error {
	if err := r.initStartBlock(ctx); err != nil {
		return fmt.Errorf("resolve starting block: %w", err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.syncEvents(ctx); err != nil {
				consecutiveErrors++
				r.logger.Printf("sync_events failed (attempt %d): %v", consecutiveErrors, err)
				if consecutiveErrors >= 3 {
					// 5s on the third failure, doubling on each one after.
					backoff := maxBackoff
					if shift := consecutiveErrors - 3; shift < 4 {
						backoff = (5 * time.Second) << shift
					}
					if backoff > maxBackoff {
						backoff = maxBackoff
					}
					r.logger.Printf("backing off %s after %d consecutive failures", backoff, consecutiveErrors)
					select {
					case <-ctx.Done():
						return nil
					case <-time.After(backoff):
					}
				}
				continue
			}
			consecutiveErrors = 0
		}
	}
}

func (r *Reconciler) initStartBlock(ctx context.Context) error {
	if r.cfg.StartBlock != nil {
		r.setNextBlock(*r.cfg.StartBlock)
		return nil
	}
	contractKey := strings.ToLower(r.cfg.ContractAddress.Hex())
	last, ok, err := r.cursors.Get(ctx, contractKey)
	if err != nil {
		return err
	}
	if ok {
		r.setNextBlock(last + 1)
		return nil
	}
	head, err := r.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get current block: %w", err)
	}
	r.setNextBlock(head)
	return nil
}

func (r *Reconciler) getNextBlock() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextBlock
}

func (r *Reconciler) setNextBlock(b uint64) {
	r.mu.Lock()
	r.nextBlock = b
	r.mu.Unlock()
}

// syncEvents runs one polling cycle: a single unified eth_getLogs call
// covering [nextBlock, toBlock], with every matching log routed locally by
// its topic0 rather than issuing one filtered call per event type.
func (r *Reconciler) syncEvents(ctx context.Context) error {
	currentBlock, err := r.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get current block: %w", err)
	}

	var safeBlock uint64
	if currentBlock > maxReorgDepth {
		safeBlock = currentBlock - maxReorgDepth
	}
	contractKey := strings.ToLower(r.cfg.ContractAddress.Hex())

	fromBlock := r.getNextBlock()
	if safeBlock > fromBlock {
		blockLag.WithLabelValues(contractKey).Set(float64(safeBlock - fromBlock))
	} else {
		blockLag.WithLabelValues(contractKey).Set(0)
	}
	if fromBlock > safeBlock {
		return nil // nothing new past the reorg-safe tip
	}
	toBlock := fromBlock + blocksPerQuery
	if toBlock > safeBlock {
		toBlock = safeBlock
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{r.cfg.ContractAddress},
	}
	logs, err := r.client.FilterLogs(ctx, query)
	if err != nil {
		return fmt.Errorf("filter logs [%d,%d]: %w", fromBlock, toBlock, err)
	}

	for _, l := range logs {
		if err := r.routeLog(ctx, l); err != nil {
			r.logger.Printf("handler error for tx %s: %v", l.TxHash.Hex(), err)
			// One bad event must not stall the whole cursor; log and move on.
		}
	}

	if err := r.cursors.Advance(ctx, contractKey, toBlock); err != nil {
		return fmt.Errorf("advance cursor to %d: %w", toBlock, err)
	}
	r.setNextBlock(toBlock + 1)
	return nil
}

func (r *Reconciler) routeLog(ctx context.Context, l types.Log) error {
	if len(l.Topics) == 0 {
		return nil
	}
	contractKey := strings.ToLower(r.cfg.ContractAddress.Hex())
	for name, event := range r.abi.Events {
		if event.ID != l.Topics[0] {
			continue
		}
		var err error
		switch name {
		case "OrderCreated":
			err = r.handleOrderCreated(ctx, l)
		case "OrderWithdrawn":
			err = r.handleOrderWithdrawn(ctx, l)
		case "ExchangeRateUpdated":
			err = r.handleExchangeRateUpdated(ctx, l)
		case "AccountLinesHashUpdated":
			err = r.handleAccountLinesHashUpdated(ctx, l)
		case "TradeCreated":
			err = r.handleTradeCreated(ctx, l)
		case "TradeSettled":
			err = r.handleTradeSettled(ctx, l)
		case "TradeExpired":
			err = r.handleTradeExpired(ctx, l)
		default:
			return nil
		}
		eventsProcessed.WithLabelValues(contractKey, name).Inc()
		if err != nil {
			handlerErrors.WithLabelValues(contractKey, name).Inc()
		}
		return err
	}
	return nil // unrecognized topic0: not one of ours, or a future event this build predates
}

func (r *Reconciler) sendNotification(ctx context.Context, wallet string, build func(activity.NotificationLanguage) activity.Event) {
	acct, err := r.emails.GetIfEnabled(ctx, wallet)
	if err != nil {
		r.logger.Printf("lookup account email for %s: %v", wallet, err)
		return
	}
	if acct == nil {
		return
	}
	lang := activity.NotificationLanguage(acct.Language)
	go r.dispatcher.Dispatch(build(lang))
}
