// Package oracle wraps a settlement.QuoteOracle with a short-lived
// LRU cache. The splitter quotes the same pair every matching round;
// there is no reason to hit the aggregation API more than once per
// interval for identical inputs.
package oracle

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/settlement"
)

// DefaultTTL keeps quotes fresh enough for slippage checks.
const DefaultTTL = 3 * time.Second

// Cached decorates an oracle with an LRU of recent quotes.
type Cached struct {
	inner settlement.QuoteOracle
	cache *lru.Cache[string, cachedQuote]
	clock domain.Clock
	ttl   time.Duration
}

type cachedQuote struct {
	quote   *settlement.Quote
	fetched time.Time
}

func NewCached(inner settlement.QuoteOracle, clock domain.Clock, size int, ttl time.Duration) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cache, err := lru.New[string, cachedQuote](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: cache, clock: clock, ttl: ttl}, nil
}

func (c *Cached) GetQuote(ctx context.Context, chainID, tokenIn, tokenOut string, amountIn uint64) (*settlement.Quote, error) {
	key := fmt.Sprintf("%s:%s:%s:%d", chainID, tokenIn, tokenOut, amountIn)
	if entry, ok := c.cache.Get(key); ok {
		if c.clock.Now().Sub(entry.fetched) < c.ttl {
			return entry.quote, nil
		}
		c.cache.Remove(key)
	}

	quote, err := c.inner.GetQuote(ctx, chainID, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cachedQuote{quote: quote, fetched: c.clock.Now()})
	return quote, nil
}
