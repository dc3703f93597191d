package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sambitsargam/AeroSwap/settlement"
)

// QuoteOracle implements settlement.QuoteOracle with fixed per-pair
// rates. Rates are tokenOut per tokenIn; tests can move them between
// calls to simulate an unfavorable market.
type QuoteOracle struct {
	mu       sync.RWMutex
	rates    map[string]decimal.Decimal
	failNext error
	calls    int
}

func NewQuoteOracle() *QuoteOracle {
	return &QuoteOracle{rates: make(map[string]decimal.Decimal)}
}

// SetRate fixes the price for a pair.
func (o *QuoteOracle) SetRate(tokenIn, tokenOut string, rate decimal.Decimal) {
	o.mu.Lock()
	o.rates[pairKey(tokenIn, tokenOut)] = rate
	o.mu.Unlock()
}

// FailNext makes the next GetQuote return err, then clears itself.
func (o *QuoteOracle) FailNext(err error) {
	o.mu.Lock()
	o.failNext = err
	o.mu.Unlock()
}

// Calls returns how many quotes were served.
func (o *QuoteOracle) Calls() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.calls
}

func (o *QuoteOracle) GetQuote(_ context.Context, _, tokenIn, tokenOut string, amountIn uint64) (*settlement.Quote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls++
	if o.failNext != nil {
		err := o.failNext
		o.failNext = nil
		return nil, err
	}

	rate, ok := o.rates[pairKey(tokenIn, tokenOut)]
	if !ok {
		return nil, fmt.Errorf("no rate for %s/%s", tokenIn, tokenOut)
	}

	amountOut := rate.Mul(decimal.NewFromUint64(amountIn)).Floor()
	return &settlement.Quote{
		AmountOut:    uint64(amountOut.IntPart()),
		EstimatedGas: 21000,
		Route:        []string{tokenIn, tokenOut},
	}, nil
}

func pairKey(tokenIn, tokenOut string) string {
	return tokenIn + "/" + tokenOut
}
