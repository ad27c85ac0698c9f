package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bitcoin-sv/brc20indexer/amount"
	"github.com/bitcoin-sv/brc20indexer/indexermodel"
	"github.com/bitcoin-sv/brc20indexer/state"
)

// DefaultTTL is how long a ticker-info lookup stays cached before falling
// through to the persistent store again.
const DefaultTTL = 30 * time.Second

// CachedStore decorates a state.PersistentStore with the cache described
// in §6, applied only to ticker info (deploy records, and the total_minted
// figure derived from them) — the "hot lookups" spec.md names. Balances
// are read through uncached: they change every block a holder transacts
// in, and a stale balance would let the validator approve a transfer it
// should reject, which outweighs the read-latency savings.
type CachedStore struct {
	state.PersistentStore
	cache Cache
	ttl   time.Duration
}

// NewCachedStore wraps next with cache, using ttl for every cached entry.
func NewCachedStore(next state.PersistentStore, cache Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedStore{PersistentStore: next, cache: cache, ttl: ttl}
}

// GetDeployRecord overrides the embedded PersistentStore's method, reading
// through cache first.
func (c *CachedStore) GetDeployRecord(ticker string) (*indexermodel.Deploy, error) {
	ctx := context.Background()
	key := Key("deploy", ticker)

	if raw, ok := c.cache.Get(ctx, key); ok {
		if raw == "" {
			return nil, nil // cached negative result
		}
		var d indexermodel.Deploy
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			return &d, nil
		}
		// A corrupt cache entry falls through to the persistent store
		// rather than erroring — the cache is never allowed to be a
		// source of truth failure.
	}

	d, err := c.PersistentStore.GetDeployRecord(ticker)
	if err != nil {
		return nil, err
	}
	if d == nil {
		c.cache.Set(ctx, key, "", c.ttl)
		return nil, nil
	}
	if buf, merr := json.Marshal(d); merr == nil {
		c.cache.Set(ctx, key, string(buf), c.ttl)
	}
	return d, nil
}

// GetTotalMinted overrides the embedded PersistentStore's method. It is
// derived from the deploy record (§3: max_supply - remaining_supply), so
// it reads through the same cached deploy record rather than keeping a
// second cache entry that could drift from it.
func (c *CachedStore) GetTotalMinted(ticker string) (string, error) {
	d, err := c.GetDeployRecord(ticker)
	if err != nil {
		return "", err
	}
	if d == nil {
		return amount.Zero, nil
	}
	return amount.Subtract(d.MaxSupply, d.RemainingSupply)
}

// InvalidateTicker drops ticker's cached deploy record, used by the commit
// path after a block changes it so the next read sees fresh data instead
// of waiting out the TTL.
func (c *CachedStore) InvalidateTicker(ticker string) {
	c.cache.Delete(context.Background(), Key("deploy", ticker))
}
