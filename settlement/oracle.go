package settlement

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sambitsargam/AeroSwap/domain"
)

// QuoteOracle prices a token pair for a given input amount. It must be
// idempotent and side-effect free; the aggregation API client and the
// test oracle both sit behind this port.
type QuoteOracle interface {
	GetQuote(ctx context.Context, chainID, tokenIn, tokenOut string, amountIn uint64) (*Quote, error)
}

// Quote is one priced route.
type Quote struct {
	AmountOut    uint64
	EstimatedGas uint64
	Route        []string
}

// Price returns amountOut per amountIn as a decimal, zero if the
// input amount is zero.
func (q *Quote) Price(amountIn uint64) decimal.Decimal {
	if amountIn == 0 {
		return decimal.Zero
	}
	return decimal.NewFromUint64(q.AmountOut).Div(decimal.NewFromUint64(amountIn))
}

// ProviderFeed is the registration surface for liquidity providers
// consumed by the partial-fill matcher.
type ProviderFeed interface {
	RegisterProvider(provider *domain.LiquidityProvider) error
	ListProviders(tokenIn, tokenOut string) []*domain.LiquidityProvider
}
