package settlement

import (
	"sync"
	"time"

	"github.com/lyncz-relay/relay/internal/verifier"
)

// proverInput is what Validate hands off to the background Settle task: the
// same receipt bytes it already ran through the prover's cheap execute
// path, plus the commitment pieces Settle needs to submit on-chain without
// re-parsing the receipt.
type proverInput struct {
	receiptData []byte
	txIDHash    verifier.Digest
	paymentTime time.Time
}

// inputCache holds one pending proverInput per trade between a successful
// Validate and the Settle task it spawns. Entries are removed on both the
// success and failure paths of Settle — nothing here survives past one
// settle attempt.
type inputCache struct {
	mu sync.RWMutex
	m  map[string]proverInput
}

func newInputCache() *inputCache {
	return &inputCache{m: make(map[string]proverInput)}
}

func (c *inputCache) put(tradeID string, in proverInput) {
	c.mu.Lock()
	c.m[tradeID] = in
	c.mu.Unlock()
}

func (c *inputCache) get(tradeID string) (proverInput, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	in, ok := c.m[tradeID]
	return in, ok
}

func (c *inputCache) delete(tradeID string) {
	c.mu.Lock()
	delete(c.m, tradeID)
	c.mu.Unlock()
}
