package config

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ContractParams is the ConfigCache's payload: tunables read from the
// escrow contract's view functions rather than from the environment. The
// relayer's ReadParams fills MinTradeValue, MaxTradeValue and
// PaymentWindow; FeeBasisPoints, ExecuteVerifier and SettleVerifier are
// not read from the contract and stay at their zero values.
type ContractParams struct {
	MinTradeValue    *big.Int
	MaxTradeValue    *big.Int
	PaymentWindow    time.Duration
	FeeBasisPoints   int64
	ExecuteVerifier  common.Address
	SettleVerifier   common.Address
}

// ContractReader is the subset of the escrow contract's read interface the
// cache needs. The concrete implementation lives in internal/relayer and
// packs and unpacks the escrow calls with go-ethereum's abi package.
type ContractReader interface {
	ReadParams(ctx context.Context) (*ContractParams, error)
}

// ContractCache is the ConfigCache entity from the data model: a TTL-gated,
// reader-writer-lock-guarded snapshot of contract tunables. Multiple
// readers may race to refresh under load; last writer wins, which is
// acceptable since the underlying values change rarely and the race only
// affects which refresh's values are retained, not correctness.
type ContractCache struct {
	mu        sync.RWMutex
	reader    ContractReader
	ttl       time.Duration
	snapshot  *ContractParams
	fetchedAt time.Time
}

// NewContractCache creates a cache that refreshes from reader at most once
// per ttl.
func NewContractCache(reader ContractReader, ttl time.Duration) *ContractCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ContractCache{reader: reader, ttl: ttl}
}

// NewContractCacheWithSeed is NewContractCache plus a pre-populated
// snapshot (typically sourced from a StaticDefaults file) so a cold start
// against a flaky RPC endpoint still has usable bounds on the very first
// Get — the seed is stored with a zero fetchedAt, so the first Get still
// attempts a live refresh and only falls back to the seed if that refresh
// fails, exactly like any other stale-snapshot fallback.
func NewContractCacheWithSeed(reader ContractReader, ttl time.Duration, seed *ContractParams) *ContractCache {
	c := NewContractCache(reader, ttl)
	c.snapshot = seed
	return c
}

// Get returns the current snapshot, refreshing it first if the TTL has
// expired. On a refresh error with a still-usable stale snapshot present,
// the stale snapshot is returned rather than propagating the error — the
// values are slow-moving enough that serving stale data beats failing a
// request outright.
func (c *ContractCache) Get(ctx context.Context) (*ContractParams, error) {
	c.mu.RLock()
	fresh := c.snapshot != nil && time.Since(c.fetchedAt) < c.ttl
	snapshot := c.snapshot
	c.mu.RUnlock()

	if fresh {
		return snapshot, nil
	}

	params, err := c.reader.ReadParams(ctx)
	if err != nil {
		if snapshot != nil {
			return snapshot, nil
		}
		return nil, fmt.Errorf("refresh contract cache: %w", err)
	}

	c.mu.Lock()
	c.snapshot = params
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return params, nil
}

// Invalidate forces the next Get to refresh regardless of TTL.
func (c *ContractCache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
