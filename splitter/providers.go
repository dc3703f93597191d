package splitter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sambitsargam/AeroSwap/domain"
)

// Scoring weights for provider ranking. Reputation dominates; raw
// fill history breaks ties between equally trusted providers.
var (
	reputationWeight = decimal.NewFromFloat(0.7)
	historyWeight    = decimal.NewFromFloat(0.3)
)

// ProviderTable implements settlement.ProviderFeed. It owns every
// LiquidityProvider record; reputation and volume are mutated only by
// the matcher through recordFill/recordFailure.
type ProviderTable struct {
	mu        sync.RWMutex
	providers map[string]*domain.LiquidityProvider
}

func NewProviderTable() *ProviderTable {
	return &ProviderTable{providers: make(map[string]*domain.LiquidityProvider)}
}

// RegisterProvider adds or replaces a provider descriptor.
func (t *ProviderTable) RegisterProvider(provider *domain.LiquidityProvider) error {
	if provider.ProviderID == "" {
		return fmt.Errorf("provider id required")
	}
	if provider.MaxFillSize == 0 {
		return fmt.Errorf("provider %s: max fill size required", provider.ProviderID)
	}

	t.mu.Lock()
	t.providers[provider.ProviderID] = provider
	t.mu.Unlock()
	return nil
}

// ListProviders returns active providers covering both legs of the
// pair, best-scored first.
func (t *ProviderTable) ListProviders(tokenIn, tokenOut string) []*domain.LiquidityProvider {
	t.mu.RLock()
	var out []*domain.LiquidityProvider
	var maxFills int64
	for _, provider := range t.providers {
		if !provider.IsActive || !provider.Supports(tokenIn, tokenOut) {
			continue
		}
		out = append(out, provider)
		if provider.TotalFills > maxFills {
			maxFills = provider.TotalFills
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return score(out[i], maxFills).GreaterThan(score(out[j], maxFills))
	})
	return out
}

// score blends reputation (0..100) with fill history normalized
// against the busiest candidate in this listing.
func score(p *domain.LiquidityProvider, maxFills int64) decimal.Decimal {
	s := p.Reputation.Mul(reputationWeight)
	if maxFills > 0 {
		history := decimal.NewFromInt(p.TotalFills).
			Div(decimal.NewFromInt(maxFills)).
			Mul(decimal.NewFromInt(100))
		s = s.Add(history.Mul(historyWeight))
	}
	return s
}

func (t *ProviderTable) recordFill(providerID string, amountIn uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	provider, ok := t.providers[providerID]
	if !ok {
		return
	}
	provider.TotalFills++
	provider.TotalVolume += amountIn
	provider.Reputation = clampReputation(provider.Reputation.Add(decimal.NewFromFloat(0.1)))
}

func (t *ProviderTable) recordFailure(providerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	provider, ok := t.providers[providerID]
	if !ok {
		return
	}
	provider.Reputation = clampReputation(provider.Reputation.Sub(decimal.NewFromInt(1)))
}

func clampReputation(r decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if r.GreaterThan(hundred) {
		return hundred
	}
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
