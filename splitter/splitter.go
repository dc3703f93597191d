// Package splitter decomposes large orders into a sequence of fills
// against registered liquidity providers. Splitting caps the price
// impact any single fill takes; the minimum fill floor guarantees the
// matching loop terminates even in a thin market.
package splitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
	"github.com/sambitsargam/AeroSwap/settlement"
)

var logModule = "splitter"

const (
	// DefaultMinFillFloor is the smallest remainder worth matching.
	DefaultMinFillFloor uint64 = 100

	// DefaultRetryInterval is the backoff between matching rounds
	// while an order still has remainder outstanding.
	DefaultRetryInterval = 10 * time.Second

	// DefaultQuoteTimeout bounds each per-fill oracle call.
	DefaultQuoteTimeout = 30 * time.Second
)

// Config carries the matcher's policy knobs.
type Config struct {
	MinFillFloor  uint64
	RetryInterval time.Duration
	QuoteTimeout  time.Duration
}

func (c *Config) fillDefaults() {
	if c.MinFillFloor == 0 {
		c.MinFillFloor = DefaultMinFillFloor
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = DefaultQuoteTimeout
	}
}

// OrderRequest are the caller-supplied terms of a split order.
type OrderRequest struct {
	User           string
	ChainID        string
	TokenIn        string
	TokenOut       string
	AmountIn       uint64
	MinAmountOut   uint64
	MaxSlippageBps int64
	Deadline       time.Time
}

// OrderTicket is returned on creation.
type OrderTicket struct {
	OrderID            string `json:"order_id"`
	ExpectedOutput     uint64 `json:"expected_output"`
	EstimatedFillCount int    `json:"estimated_fill_count"`
}

// OrderStatus is the derived read view of one order.
type OrderStatus struct {
	OrderID              string             `json:"order_id"`
	Status               domain.OrderStatus `json:"status"`
	CompletionPercentage decimal.Decimal    `json:"completion_percentage"`
	FillCount            int                `json:"fill_count"`
	AverageFillSize      uint64             `json:"average_fill_size"`
	RemainingAmountIn    uint64             `json:"remaining_amount_in"`
	FilledAmountOut      uint64             `json:"filled_amount_out"`
	EstimatedCompletion  time.Time          `json:"estimated_completion"`
}

// Analytics aggregates matcher activity across all orders.
type Analytics struct {
	OpenOrders      int    `json:"open_orders"`
	CompletedOrders int    `json:"completed_orders"`
	ExpiredOrders   int    `json:"expired_orders"`
	TotalFills      int    `json:"total_fills"`
	TotalVolumeIn   uint64 `json:"total_volume_in"`
	TotalVolumeOut  uint64 `json:"total_volume_out"`
}

// Splitter owns the PartialOrder table and runs the matching loops.
type Splitter struct {
	oracle    settlement.QuoteOracle
	providers *ProviderTable
	clock     domain.Clock
	bus       *events.Bus
	cfg       Config

	mu     sync.Mutex
	orders map[string]*domain.PartialOrder

	wg sync.WaitGroup
}

func NewSplitter(oracle settlement.QuoteOracle, providers *ProviderTable, clock domain.Clock, bus *events.Bus, cfg Config) *Splitter {
	cfg.fillDefaults()
	return &Splitter{
		oracle:    oracle,
		providers: providers,
		clock:     clock,
		bus:       bus,
		cfg:       cfg,
		orders:    make(map[string]*domain.PartialOrder),
	}
}

// CreateOrder quotes the full amount once to establish the reference
// price, registers the order and kicks off asynchronous matching. The
// matching goroutine stops on completion, expiry or ctx cancellation.
func (s *Splitter) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderTicket, error) {
	if req.AmountIn == 0 {
		return nil, fmt.Errorf("amount in required")
	}

	now := s.clock.Now()
	if !req.Deadline.After(now) {
		return nil, domain.ErrOrderExpired
	}

	quoteCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()
	quote, err := s.oracle.GetQuote(quoteCtx, req.ChainID, req.TokenIn, req.TokenOut, req.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("reference quote: %w", err)
	}

	order := &domain.PartialOrder{
		OrderID:           uuid.NewString(),
		User:              req.User,
		ChainID:           req.ChainID,
		TokenIn:           req.TokenIn,
		TokenOut:          req.TokenOut,
		TotalAmountIn:     req.AmountIn,
		RemainingAmountIn: req.AmountIn,
		MinAmountOut:      req.MinAmountOut,
		MaxSlippageBps:    req.MaxSlippageBps,
		Deadline:          req.Deadline,
		ReferencePrice:    quote.Price(req.AmountIn),
		Status:            domain.OrderStatusOpen,
		CreatedAt:         now,
	}

	s.mu.Lock()
	s.orders[order.OrderID] = order
	s.mu.Unlock()

	ticket := &OrderTicket{
		OrderID:            order.OrderID,
		ExpectedOutput:     quote.AmountOut,
		EstimatedFillCount: s.estimateFillCount(req),
	}

	log.WithFields(log.Fields{
		"module": logModule,
		"order":  order.OrderID,
		"amount": req.AmountIn,
		"fills":  ticket.EstimatedFillCount,
	}).Info("split order created")

	s.wg.Add(1)
	go s.matchLoop(ctx, order.OrderID)
	return ticket, nil
}

// matchLoop reschedules matching rounds on a fixed backoff until the
// order leaves the open state.
func (s *Splitter) matchLoop(ctx context.Context, orderID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if done := s.MatchOrder(ctx, orderID); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until every matching loop has exited. Shutdown helper.
func (s *Splitter) Wait() { s.wg.Wait() }

// MatchOrder runs one matching round: walk providers best-first and
// attempt a fill against each until the remainder drops to the floor
// or candidates run out. Returns true once the order is terminal.
func (s *Splitter) MatchOrder(ctx context.Context, orderID string) bool {
	snapshot, err := s.Order(orderID)
	if err != nil {
		return true
	}
	if snapshot.Status != domain.OrderStatusOpen {
		return true
	}

	if s.clock.Now().After(snapshot.Deadline) {
		s.expire(orderID)
		return true
	}

	for _, provider := range s.providers.ListProviders(snapshot.TokenIn, snapshot.TokenOut) {
		remaining, open := s.remaining(orderID)
		if !open || remaining <= s.cfg.MinFillFloor {
			break
		}

		fillSize := provider.MaxFillSize
		if remaining < fillSize {
			fillSize = remaining
		}
		if fillSize < s.cfg.MinFillFloor {
			continue
		}

		if err := s.attemptFill(ctx, orderID, provider, fillSize); err != nil {
			log.WithFields(log.Fields{
				"module":   logModule,
				"order":    orderID,
				"provider": provider.ProviderID,
				"error":    err,
			}).Debug("fill rejected")
		}
	}

	remaining, open := s.remaining(orderID)
	if open && remaining <= s.cfg.MinFillFloor {
		s.complete(orderID)
		return true
	}
	return !open
}

// attemptFill quotes one fill and accepts it if the price impact
// against the reference price stays inside the order's tolerance. A
// rejected fill changes nothing on the order.
func (s *Splitter) attemptFill(ctx context.Context, orderID string, provider *domain.LiquidityProvider, fillSize uint64) error {
	snapshot, err := s.Order(orderID)
	if err != nil {
		return err
	}

	quoteCtx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()
	quote, err := s.oracle.GetQuote(quoteCtx, snapshot.ChainID, snapshot.TokenIn, snapshot.TokenOut, fillSize)
	if err != nil {
		s.providers.recordFailure(provider.ProviderID)
		return fmt.Errorf("fill quote: %w", err)
	}

	fillPrice := quote.Price(fillSize)
	if impact := priceImpactBps(snapshot.ReferencePrice, fillPrice); impact > snapshot.MaxSlippageBps {
		return fmt.Errorf("%w: impact %d bps over limit %d", domain.ErrSlippageExceeded, impact, snapshot.MaxSlippageBps)
	}

	fill := &domain.Fill{
		FillID:     uuid.NewString(),
		OrderID:    orderID,
		ProviderID: provider.ProviderID,
		AmountIn:   fillSize,
		AmountOut:  quote.AmountOut,
		Price:      fillPrice,
		Timestamp:  s.clock.Now(),
	}

	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != domain.OrderStatusOpen || order.RemainingAmountIn < fillSize {
		s.mu.Unlock()
		return domain.ErrInvalidState
	}
	order.Fills = append(order.Fills, fill)
	order.RemainingAmountIn -= fillSize
	s.mu.Unlock()

	s.providers.recordFill(provider.ProviderID, fillSize)
	s.publishFill(fill)
	return nil
}

// priceImpactBps measures how far the fill price fell below the
// reference price, in basis points. A better-than-reference price is
// zero impact.
func priceImpactBps(reference, fill decimal.Decimal) int64 {
	if !reference.IsPositive() || fill.GreaterThanOrEqual(reference) {
		return 0
	}
	return reference.Sub(fill).
		Div(reference).
		Mul(decimal.NewFromInt(10000)).
		IntPart()
}

func (s *Splitter) estimateFillCount(req *OrderRequest) int {
	providers := s.providers.ListProviders(req.TokenIn, req.TokenOut)
	if len(providers) == 0 {
		return 0
	}

	count := 0
	remaining := req.AmountIn
	for remaining > s.cfg.MinFillFloor {
		idx := count % len(providers)
		size := providers[idx].MaxFillSize
		if size > remaining {
			size = remaining
		}
		remaining -= size
		count++
		if count > 1000 {
			break
		}
	}
	return count
}

func (s *Splitter) remaining(orderID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return 0, false
	}
	return order.RemainingAmountIn, order.Status == domain.OrderStatusOpen
}

func (s *Splitter) complete(orderID string) {
	s.transition(orderID, domain.OrderStatusCompleted)
}

func (s *Splitter) expire(orderID string) {
	s.transition(orderID, domain.OrderStatusExpired)
}

func (s *Splitter) transition(orderID string, to domain.OrderStatus) {
	s.mu.Lock()
	order, ok := s.orders[orderID]
	if !ok || order.Status != domain.OrderStatusOpen {
		s.mu.Unlock()
		return
	}
	order.Status = to
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"module": logModule,
		"order":  orderID,
		"status": to,
	}).Info("order finished")

	if s.bus != nil {
		s.bus.Publish(events.Event{
			Type:    events.TypeOrderStatus,
			Subject: orderID,
			Status:  string(to),
		})
	}
}

// Order returns a snapshot safe to read outside the matcher.
func (s *Splitter) Order(orderID string) (*domain.PartialOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}

	copied := *order
	copied.Fills = append([]*domain.Fill(nil), order.Fills...)
	return &copied, nil
}

// Status derives the read view from fills and remainder.
func (s *Splitter) Status(orderID string) (*OrderStatus, error) {
	order, err := s.Order(orderID)
	if err != nil {
		return nil, err
	}

	// An open order past its deadline is expired, no matter whether
	// the matching loop has noticed yet.
	if order.Status == domain.OrderStatusOpen && s.clock.Now().After(order.Deadline) {
		s.expire(orderID)
		order.Status = domain.OrderStatusExpired
	}

	filled := order.FilledAmountIn()
	status := &OrderStatus{
		OrderID:           order.OrderID,
		Status:            order.Status,
		FillCount:         len(order.Fills),
		RemainingAmountIn: order.RemainingAmountIn,
		FilledAmountOut:   order.FilledAmountOut(),
	}
	if order.TotalAmountIn > 0 {
		status.CompletionPercentage = decimal.NewFromUint64(filled).
			Div(decimal.NewFromUint64(order.TotalAmountIn)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if len(order.Fills) > 0 {
		status.AverageFillSize = filled / uint64(len(order.Fills))

		// Projection from observed fill pace; rough by construction.
		elapsed := s.clock.Now().Sub(order.CreatedAt)
		perUnit := elapsed / time.Duration(len(order.Fills))
		fillsLeft := (order.RemainingAmountIn + status.AverageFillSize - 1) / max(status.AverageFillSize, 1)
		status.EstimatedCompletion = s.clock.Now().Add(perUnit * time.Duration(fillsLeft))
	}
	return status, nil
}

// AnalyticsReport aggregates counters across all orders.
func (s *Splitter) AnalyticsReport() *Analytics {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Analytics{}
	for _, order := range s.orders {
		switch order.Status {
		case domain.OrderStatusOpen:
			report.OpenOrders++
		case domain.OrderStatusCompleted:
			report.CompletedOrders++
		case domain.OrderStatusExpired:
			report.ExpiredOrders++
		}
		report.TotalFills += len(order.Fills)
		report.TotalVolumeIn += order.FilledAmountIn()
		report.TotalVolumeOut += order.FilledAmountOut()
	}
	return report
}

func (s *Splitter) publishFill(fill *domain.Fill) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:    events.TypeFill,
		Subject: fill.OrderID,
		Status:  string(domain.OrderStatusOpen),
		Detail: map[string]any{
			"fill_id":    fill.FillID,
			"provider":   fill.ProviderID,
			"amount_in":  fill.AmountIn,
			"amount_out": fill.AmountOut,
		},
	})
}
