// Package mevshield implements commit-reveal batch execution. Order
// terms stay hidden until every participant has committed blind, and
// the batch executes in commit order, so neither an observer nor the
// scheduler itself can reorder for profit.
package mevshield

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
	"github.com/sambitsargam/AeroSwap/settlement"
)

var logModule = "mevshield"

const (
	// DefaultRevealWindow is how long a commitment may stay blind
	// before it is treated as abandoned. Policy, not protocol.
	DefaultRevealWindow = 30 * time.Second

	// DefaultBatchInterval is the execution cadence. Policy as well.
	DefaultBatchInterval = 5 * time.Second

	// DefaultQuoteTimeout bounds each oracle call during execution.
	DefaultQuoteTimeout = 30 * time.Second
)

// Config carries the shield's policy knobs.
type Config struct {
	RevealWindow  time.Duration
	BatchInterval time.Duration
	QuoteTimeout  time.Duration
}

func (c *Config) fillDefaults() {
	if c.RevealWindow <= 0 {
		c.RevealWindow = DefaultRevealWindow
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = DefaultBatchInterval
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = DefaultQuoteTimeout
	}
}

// CommitTicket is returned to the committer.
type CommitTicket struct {
	OrderID        string    `json:"order_id"`
	Commitment     string    `json:"commitment"`
	RevealDeadline time.Time `json:"reveal_deadline"`
}

// RevealResult reports where a revealed order landed in the batch.
type RevealResult struct {
	OrderID       string `json:"order_id"`
	BatchPosition int    `json:"batch_position"`
}

// OrderView is the read-only status of a protected order.
type OrderView struct {
	OrderID     string                  `json:"order_id"`
	Status      domain.CommitmentStatus `json:"status"`
	SubmittedAt time.Time               `json:"submitted_at"`
	ExecutedOut uint64                  `json:"executed_out,omitempty"`
	FailReason  string                  `json:"fail_reason,omitempty"`
}

// ProtectionStats aggregates shield activity for the stats endpoint.
type ProtectionStats struct {
	TotalCommitted  int64 `json:"total_committed"`
	TotalRevealed   int64 `json:"total_revealed"`
	TotalExecuted   int64 `json:"total_executed"`
	TotalFailed     int64 `json:"total_failed"`
	TotalAbandoned  int64 `json:"total_abandoned"`
	ActiveBatchSize int   `json:"active_batch_size"`
	BatchesRun      int64 `json:"batches_run"`
}

// Shield is the commitment store plus its batch scheduler.
type Shield struct {
	oracle settlement.QuoteOracle
	clock  domain.Clock
	bus    *events.Bus
	cfg    Config

	mu      sync.Mutex
	byHash  map[string]*domain.Commitment // commitment digest -> entry
	byOrder map[string]*domain.Commitment
	batch   []*domain.Commitment
	stats   ProtectionStats
}

func NewShield(oracle settlement.QuoteOracle, clock domain.Clock, bus *events.Bus, cfg Config) *Shield {
	cfg.fillDefaults()
	return &Shield{
		oracle:  oracle,
		clock:   clock,
		bus:     bus,
		cfg:     cfg,
		byHash:  make(map[string]*domain.Commitment),
		byOrder: make(map[string]*domain.Commitment),
	}
}

// Commit stores a blind commitment over the caller's order terms. The
// terms themselves are hashed client-side semantics: the shield only
// learns the digest until reveal.
func (s *Shield) Commit(params *domain.OrderParams) (*CommitTicket, [32]byte, error) {
	nonce, err := domain.NewCommitmentNonce()
	if err != nil {
		return nil, nonce, err
	}

	digest := domain.ComputeCommitment(params, nonce)
	now := s.clock.Now()
	entry := &domain.Commitment{
		OrderID:     uuid.NewString(),
		Commitment:  digest,
		Nonce:       nonce,
		Status:      domain.CommitmentStatusCommitted,
		SubmittedAt: now,
	}

	s.mu.Lock()
	s.byHash[digest] = entry
	s.byOrder[entry.OrderID] = entry
	s.stats.TotalCommitted++
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"module": logModule,
		"order":  entry.OrderID,
	}).Info("order committed")

	return &CommitTicket{
		OrderID:        entry.OrderID,
		Commitment:     digest,
		RevealDeadline: now.Add(s.cfg.RevealWindow),
	}, nonce, nil
}

// Reveal opens a commitment. The digest is recomputed from the
// revealed terms and nonce; any disagreement with the stored
// commitment is a protocol violation and the order is discarded. The
// batch append and the status flip happen in one critical section so
// racing reveals cannot interleave.
func (s *Shield) Reveal(commitment string, params *domain.OrderParams, nonce [32]byte) (*RevealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byHash[commitment]
	if !ok {
		return nil, domain.ErrCommitmentNotFound
	}
	if entry.Status != domain.CommitmentStatusCommitted {
		return nil, domain.ErrInvalidState
	}

	if domain.ComputeCommitment(params, nonce) != commitment {
		delete(s.byHash, commitment)
		delete(s.byOrder, entry.OrderID)
		log.WithFields(log.Fields{
			"module": logModule,
			"order":  entry.OrderID,
		}).Warn("reveal digest mismatch, discarding order")
		return nil, domain.ErrCommitmentMismatch
	}

	entry.Params = params
	entry.Status = domain.CommitmentStatusRevealed
	entry.RevealedAt = s.clock.Now()
	s.batch = append(s.batch, entry)
	s.stats.TotalRevealed++

	return &RevealResult{OrderID: entry.OrderID, BatchPosition: len(s.batch) - 1}, nil
}

// Run drives the batch scheduler until the context is cancelled. The
// cadence is independent of any single request.
func (s *Shield) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.WithFields(log.Fields{"module": logModule}).Info("batch scheduler stopped")
			return
		case <-ticker.C:
			s.ProcessBatch(ctx)
			s.purgeAbandoned()
		}
	}
}

// ProcessBatch executes the accumulated batch in commit order. One
// order failing its slippage check marks that order failed and the
// pass continues; the batch is cleared afterwards either way.
func (s *Shield) ProcessBatch(ctx context.Context) {
	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	if len(batch) > 0 {
		s.stats.BatchesRun++
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	// FIFO by original commit time, not reveal time: the scheduler
	// must not profit from its own ordering discretion.
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].SubmittedAt.Before(batch[j].SubmittedAt)
	})

	log.WithFields(log.Fields{
		"module": logModule,
		"size":   len(batch),
	}).Info("executing batch")

	for _, entry := range batch {
		amountOut, err := s.executeOrder(ctx, entry)
		if err != nil {
			s.markFailed(entry, err)
			continue
		}
		s.markExecuted(entry, amountOut)
	}
}

func (s *Shield) executeOrder(ctx context.Context, entry *domain.Commitment) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QuoteTimeout)
	defer cancel()

	params := entry.Params
	quote, err := s.oracle.GetQuote(ctx, params.ChainID, params.TokenIn, params.TokenOut, params.AmountIn)
	if err != nil {
		return 0, fmt.Errorf("quote order %s: %w", entry.OrderID, err)
	}

	if quote.AmountOut < params.MinAmountOut {
		return 0, fmt.Errorf("%w: got %d, want at least %d",
			domain.ErrSlippageExceeded, quote.AmountOut, params.MinAmountOut)
	}
	return quote.AmountOut, nil
}

func (s *Shield) markExecuted(entry *domain.Commitment, amountOut uint64) {
	s.mu.Lock()
	entry.Status = domain.CommitmentStatusExecuted
	entry.ExecutedOut = amountOut
	s.stats.TotalExecuted++
	s.mu.Unlock()

	s.publish(entry)
}

func (s *Shield) markFailed(entry *domain.Commitment, err error) {
	s.mu.Lock()
	entry.Status = domain.CommitmentStatusFailed
	entry.FailReason = err.Error()
	s.stats.TotalFailed++
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"module": logModule,
		"order":  entry.OrderID,
		"error":  err,
	}).Warn("order failed in batch")
	s.publish(entry)
}

// purgeAbandoned drops commitments whose reveal window has lapsed.
func (s *Shield) purgeAbandoned() {
	cutoff := s.clock.Now().Add(-s.cfg.RevealWindow)

	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, entry := range s.byHash {
		if entry.Status == domain.CommitmentStatusCommitted && entry.SubmittedAt.Before(cutoff) {
			delete(s.byHash, digest)
			delete(s.byOrder, entry.OrderID)
			s.stats.TotalAbandoned++
			log.WithFields(log.Fields{
				"module": logModule,
				"order":  entry.OrderID,
			}).Info("abandoned commitment purged")
		}
	}
}

// OrderStatus is a pure read of one protected order.
func (s *Shield) OrderStatus(orderID string) (*OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byOrder[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &OrderView{
		OrderID:     entry.OrderID,
		Status:      entry.Status,
		SubmittedAt: entry.SubmittedAt,
		ExecutedOut: entry.ExecutedOut,
		FailReason:  entry.FailReason,
	}, nil
}

// Stats returns a copy of the running counters.
func (s *Shield) Stats() ProtectionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.ActiveBatchSize = len(s.batch)
	return stats
}

func (s *Shield) publish(entry *domain.Commitment) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Type:    events.TypeBatchStatus,
		Subject: entry.OrderID,
		Status:  string(entry.Status),
	})
}
