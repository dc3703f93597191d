package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a split order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusExpired   OrderStatus = "EXPIRED"
)

// PartialOrder is a large order being worked off against multiple
// liquidity providers. Invariant: the fill amounts plus the remainder
// always sum to TotalAmountIn.
type PartialOrder struct {
	OrderID           string
	User              string
	ChainID           string
	TokenIn           string
	TokenOut          string
	TotalAmountIn     uint64
	RemainingAmountIn uint64
	MinAmountOut      uint64
	MaxSlippageBps    int64
	Deadline          time.Time
	ReferencePrice    decimal.Decimal // tokenOut per tokenIn at creation
	Fills             []*Fill
	Status            OrderStatus
	CreatedAt         time.Time
}

// FilledAmountIn sums the input side of all accepted fills.
func (o *PartialOrder) FilledAmountIn() uint64 {
	var total uint64
	for _, fill := range o.Fills {
		total += fill.AmountIn
	}
	return total
}

// FilledAmountOut sums the output side of all accepted fills.
func (o *PartialOrder) FilledAmountOut() uint64 {
	var total uint64
	for _, fill := range o.Fills {
		total += fill.AmountOut
	}
	return total
}

// Fill is one accepted execution against a provider. Immutable once
// appended to an order.
type Fill struct {
	FillID     string
	OrderID    string
	ProviderID string
	AmountIn   uint64
	AmountOut  uint64
	Price      decimal.Decimal
	Timestamp  time.Time
}

// LiquidityProvider describes one registered liquidity source.
// Reputation is mutated only by the matcher after a fill settles.
type LiquidityProvider struct {
	ProviderID      string
	Address         string
	SupportedTokens map[string]struct{}
	MaxFillSize     uint64
	MinProfitBps    int64
	Reputation      decimal.Decimal // 0..100
	TotalFills      int64
	TotalVolume     uint64
	IsActive        bool
}

// Supports reports whether the provider quotes both legs of a pair.
func (p *LiquidityProvider) Supports(tokenIn, tokenOut string) bool {
	if _, ok := p.SupportedTokens[tokenIn]; !ok {
		return false
	}
	_, ok := p.SupportedTokens[tokenOut]
	return ok
}
