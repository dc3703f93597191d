package splitter

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sambitsargam/AeroSwap/adapters/mock"
	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
)

type fixture struct {
	splitter *Splitter
	quotes   *mock.QuoteOracle
	table    *ProviderTable
	clock    *mock.Clock
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	quotes := mock.NewQuoteOracle()
	quotes.SetRate("USDC", "DAI", decimal.NewFromFloat(0.5))

	// Cancelled context keeps the background matching loop quiet so
	// tests drive rounds explicitly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := mock.NewClock(time.Unix(1_700_000_000, 0))
	table := NewProviderTable()
	return &fixture{
		splitter: NewSplitter(quotes, table, clock, events.NewBus(), Config{MinFillFloor: 100}),
		quotes:   quotes,
		table:    table,
		clock:    clock,
		ctx:      ctx,
	}
}

func (f *fixture) addProvider(t *testing.T, id string, maxFill uint64, reputation float64) {
	t.Helper()
	require.NoError(t, f.table.RegisterProvider(&domain.LiquidityProvider{
		ProviderID:      id,
		Address:         "0x" + id,
		SupportedTokens: map[string]struct{}{"USDC": {}, "DAI": {}},
		MaxFillSize:     maxFill,
		Reputation:      decimal.NewFromFloat(reputation),
		IsActive:        true,
	}))
}

func (f *fixture) createOrder(t *testing.T, amountIn uint64, slippageBps int64, ttl time.Duration) *OrderTicket {
	t.Helper()
	ticket, err := f.splitter.CreateOrder(f.ctx, &OrderRequest{
		User:           "alice",
		ChainID:        "ethereum",
		TokenIn:        "USDC",
		TokenOut:       "DAI",
		AmountIn:       amountIn,
		MaxSlippageBps: slippageBps,
		Deadline:       f.clock.Now().Add(ttl),
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) matchUntilDone(t *testing.T, orderID string, maxRounds int) {
	t.Helper()
	for i := 0; i < maxRounds; i++ {
		if f.splitter.MatchOrder(context.Background(), orderID) {
			return
		}
	}
	t.Fatalf("order %s not terminal after %d rounds", orderID, maxRounds)
}

func requireConservation(t *testing.T, order *domain.PartialOrder) {
	t.Helper()
	require.Equal(t, order.TotalAmountIn, order.FilledAmountIn()+order.RemainingAmountIn,
		"fill conservation violated")
}

func TestSplitAcrossCappedProviders(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 4000, 90)
	f.addProvider(t, "lp-b", 4000, 80)
	f.addProvider(t, "lp-c", 4000, 70)

	ticket := f.createOrder(t, 10_000, 100, time.Hour)
	require.Equal(t, uint64(5000), ticket.ExpectedOutput)
	require.Equal(t, 3, ticket.EstimatedFillCount)

	done := f.splitter.MatchOrder(context.Background(), ticket.OrderID)
	require.True(t, done)

	order, err := f.splitter.Order(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.GreaterOrEqual(t, len(order.Fills), 3)
	require.LessOrEqual(t, order.RemainingAmountIn, uint64(100))
	requireConservation(t, order)

	// Best-reputation provider went first and took its full cap.
	require.Equal(t, "lp-a", order.Fills[0].ProviderID)
	require.Equal(t, uint64(4000), order.Fills[0].AmountIn)
}

func TestConservationHoldsAtEveryObservation(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 1500, 90)

	ticket := f.createOrder(t, 10_000, 100, time.Hour)

	// One fill per round with a single provider; observe between
	// every round.
	for i := 0; i < 10; i++ {
		order, err := f.splitter.Order(ticket.OrderID)
		require.NoError(t, err)
		requireConservation(t, order)
		if order.Status != domain.OrderStatusOpen {
			break
		}
		f.splitter.MatchOrder(context.Background(), ticket.OrderID)
	}

	order, err := f.splitter.Order(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.Len(t, order.Fills, 7)
	requireConservation(t, order)
}

func TestPriceImpactRejection(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 4000, 90)

	ticket := f.createOrder(t, 10_000, 50, time.Hour) // 0.5% tolerance

	// Market moves 10% against the order after the reference quote.
	f.quotes.SetRate("USDC", "DAI", decimal.NewFromFloat(0.45))

	f.splitter.MatchOrder(context.Background(), ticket.OrderID)

	order, err := f.splitter.Order(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusOpen, order.Status)
	require.Empty(t, order.Fills)
	require.Equal(t, uint64(10_000), order.RemainingAmountIn)

	// Market recovers; matching proceeds to completion.
	f.quotes.SetRate("USDC", "DAI", decimal.NewFromFloat(0.5))
	f.matchUntilDone(t, ticket.OrderID, 5)

	order, err = f.splitter.Order(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
	requireConservation(t, order)
}

func TestDeadlineExpiry(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 1000, 90)

	ticket := f.createOrder(t, 10_000, 100, time.Minute)

	// One partial fill, then the deadline passes with remainder
	// outstanding.
	f.splitter.MatchOrder(context.Background(), ticket.OrderID)
	f.clock.Advance(2 * time.Minute)

	done := f.splitter.MatchOrder(context.Background(), ticket.OrderID)
	require.True(t, done)

	order, err := f.splitter.Order(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusExpired, order.Status)
	require.Len(t, order.Fills, 1)
	require.Equal(t, uint64(9000), order.RemainingAmountIn)
	requireConservation(t, order)
}

func TestStatusReportsExpiryWithoutMatching(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 1000, 90)

	ticket := f.createOrder(t, 10_000, 100, time.Minute)
	f.clock.Advance(2 * time.Minute)

	// No matching round noticed the deadline; the status read must
	// still never report the order as open.
	status, err := f.splitter.Status(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusExpired, status.Status)
}

func TestStatusDerivation(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 2500, 90)

	ticket := f.createOrder(t, 10_000, 100, time.Hour)
	f.matchUntilDone(t, ticket.OrderID, 5)

	status, err := f.splitter.Status(ticket.OrderID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, status.Status)
	require.Equal(t, 4, status.FillCount)
	require.Equal(t, uint64(2500), status.AverageFillSize)
	require.Equal(t, uint64(5000), status.FilledAmountOut)
	require.True(t, status.CompletionPercentage.Equal(decimal.NewFromInt(100)))
}

func TestProviderRanking(t *testing.T) {
	table := NewProviderTable()
	tokens := map[string]struct{}{"USDC": {}, "DAI": {}}

	require.NoError(t, table.RegisterProvider(&domain.LiquidityProvider{
		ProviderID: "trusted", SupportedTokens: tokens, MaxFillSize: 1000,
		Reputation: decimal.NewFromInt(95), TotalFills: 10, IsActive: true,
	}))
	require.NoError(t, table.RegisterProvider(&domain.LiquidityProvider{
		ProviderID: "busy", SupportedTokens: tokens, MaxFillSize: 1000,
		Reputation: decimal.NewFromInt(50), TotalFills: 500, IsActive: true,
	}))
	require.NoError(t, table.RegisterProvider(&domain.LiquidityProvider{
		ProviderID: "inactive", SupportedTokens: tokens, MaxFillSize: 1000,
		Reputation: decimal.NewFromInt(99), IsActive: false,
	}))
	require.NoError(t, table.RegisterProvider(&domain.LiquidityProvider{
		ProviderID: "wrong-pair", SupportedTokens: map[string]struct{}{"WBTC": {}},
		MaxFillSize: 1000, Reputation: decimal.NewFromInt(99), IsActive: true,
	}))

	ranked := table.ListProviders("USDC", "DAI")
	require.Len(t, ranked, 2)
	// 95*0.7 + (10/500*100)*0.3 = 67.1 beats 50*0.7 + 100*0.3 = 65.
	require.Equal(t, "trusted", ranked[0].ProviderID)
	require.Equal(t, "busy", ranked[1].ProviderID)
}

func TestReputationFeedback(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 4000, 90)

	ticket := f.createOrder(t, 4000, 100, time.Hour)
	f.matchUntilDone(t, ticket.OrderID, 3)

	ranked := f.table.ListProviders("USDC", "DAI")
	require.Len(t, ranked, 1)
	require.Equal(t, int64(1), ranked[0].TotalFills)
	require.Equal(t, uint64(4000), ranked[0].TotalVolume)
	require.True(t, ranked[0].Reputation.GreaterThan(decimal.NewFromInt(90)))
}

func TestAnalyticsReport(t *testing.T) {
	f := newFixture(t)
	f.addProvider(t, "lp-a", 4000, 90)

	completed := f.createOrder(t, 8000, 100, time.Hour)
	f.matchUntilDone(t, completed.OrderID, 5)

	expired := f.createOrder(t, 5000, 100, time.Minute)
	f.clock.Advance(2 * time.Minute)
	f.splitter.MatchOrder(context.Background(), expired.OrderID)

	report := f.splitter.AnalyticsReport()
	require.Equal(t, 1, report.CompletedOrders)
	require.Equal(t, 1, report.ExpiredOrders)
	require.Equal(t, 0, report.OpenOrders)
	require.Equal(t, 2, report.TotalFills)
	require.Equal(t, uint64(8000), report.TotalVolumeIn)
	require.Equal(t, uint64(4000), report.TotalVolumeOut)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.splitter.CreateOrder(f.ctx, &OrderRequest{
		TokenIn: "USDC", TokenOut: "DAI",
		Deadline: f.clock.Now().Add(time.Hour),
	})
	require.Error(t, err)

	_, err = f.splitter.CreateOrder(f.ctx, &OrderRequest{
		TokenIn: "USDC", TokenOut: "DAI", AmountIn: 100,
		Deadline: f.clock.Now().Add(-time.Minute),
	})
	require.ErrorIs(t, err, domain.ErrOrderExpired)
}
