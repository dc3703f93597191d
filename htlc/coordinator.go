// Package htlc orchestrates two-sided atomic swaps. The coordinator
// manages the pending → deployed → claimed/refunded state machine and
// delegates all chain interaction to per-family settlement drivers.
package htlc

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/registry"
	"github.com/sambitsargam/AeroSwap/settlement"
)

var logModule = "htlc"

const (
	// DefaultTimelock is applied when the caller passes zero.
	DefaultTimelock = time.Hour

	// DefaultDriverTimeout bounds every DeployLock/ClaimLock/RefundLock
	// call so a hung signer cannot wedge a swap mid-transition.
	DefaultDriverTimeout = 30 * time.Second
)

// Config carries the coordinator's policy knobs.
type Config struct {
	DriverTimeout time.Duration
}

// Coordinator builds swap parameters, deploys locks and settles them.
// One instance serves all chains; drivers are keyed by family.
type Coordinator struct {
	registry *registry.Registry
	drivers  map[domain.ChainFamily]settlement.ChainDriver
	clock    domain.Clock
	cfg      Config

	// swapMu serializes claim/refund attempts per swap so the status
	// compare-and-set decides races instead of duplicate broadcasts.
	mu     sync.Mutex
	swapMu map[string]*sync.Mutex
}

// MonitorResult is the read-only view surfaced to callers.
type MonitorResult struct {
	SwapID        string            `json:"swap_id"`
	Status        domain.SwapStatus `json:"status"`
	TimeRemaining int64             `json:"time_remaining"`
	CanClaim      bool              `json:"can_claim"`
	CanRefund     bool              `json:"can_refund"`
	SourceTxHash  string            `json:"source_tx_hash,omitempty"`
	ClaimTxHash   string            `json:"claim_tx_hash,omitempty"`
	RefundTxHash  string            `json:"refund_tx_hash,omitempty"`
}

// NewCoordinator wires the coordinator to its collaborators. Drivers
// are registered by their chain family; a swap touching a family with
// no driver fails at deploy time, not at creation.
func NewCoordinator(reg *registry.Registry, drivers []settlement.ChainDriver, clock domain.Clock, cfg Config) *Coordinator {
	if cfg.DriverTimeout <= 0 {
		cfg.DriverTimeout = DefaultDriverTimeout
	}

	byFamily := make(map[domain.ChainFamily]settlement.ChainDriver, len(drivers))
	for _, driver := range drivers {
		byFamily[driver.Family()] = driver
	}
	return &Coordinator{
		registry: reg,
		drivers:  byFamily,
		clock:    clock,
		cfg:      cfg,
		swapMu:   make(map[string]*sync.Mutex),
	}
}

// CreateParams generates a fresh hash lock and swap id and registers
// the record as pending. The secret stays inside the record's hash
// lock and is never part of the returned snapshot's public fields.
func (c *Coordinator) CreateParams(sourceChainID, destChainID string, amount uint64, recipient string, timelock time.Duration) (*domain.SwapRecord, error) {
	sourceChain, err := domain.ChainByID(sourceChainID)
	if err != nil {
		return nil, fmt.Errorf("source chain %q: %w", sourceChainID, err)
	}

	destChain, err := domain.ChainByID(destChainID)
	if err != nil {
		return nil, fmt.Errorf("dest chain %q: %w", destChainID, err)
	}

	if timelock <= 0 {
		timelock = DefaultTimelock
	}

	lock, err := domain.NewHashLock(destChain.Family)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	swapID, err := domain.NewSwapID(now)
	if err != nil {
		return nil, err
	}

	record := &domain.SwapRecord{
		ID:          swapID,
		SourceChain: sourceChain,
		DestChain:   destChain,
		Amount:      amount,
		Recipient:   recipient,
		HashLock:    lock,
		Timelock:    now.Add(timelock).Unix(),
		Status:      domain.SwapStatusPending,
		CreatedAt:   now,
	}
	c.registry.Add(record)

	log.WithFields(log.Fields{
		"module": logModule,
		"swap":   swapID,
		"source": sourceChain.ID,
		"dest":   destChain.ID,
		"amount": amount,
	}).Info("swap parameters created")
	return record, nil
}

// Deploy escrows the amount on the source chain. On broadcast success
// the record moves to deployed; on failure it stays pending and the
// call is safe to retry. Callers must still Wait on the returned
// PendingTx before treating the lock as final.
func (c *Coordinator) Deploy(ctx context.Context, swapID string) (settlement.PendingTx, error) {
	unlock := c.lockSwap(swapID)
	defer unlock()

	var req *settlement.LockRequest
	err := c.registry.View(swapID, func(record *domain.SwapRecord) error {
		if record.Status != domain.SwapStatusPending {
			return domain.ErrInvalidState
		}
		req = &settlement.LockRequest{
			SwapID:    record.ID,
			Chain:     record.SourceChain,
			Amount:    record.Amount,
			Recipient: record.Recipient,
			Hash:      record.HashLock.Hash,
			Timelock:  record.Timelock,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	driver, err := c.driverFor(req.Chain.Family)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DriverTimeout)
	defer cancel()

	pending, err := driver.DeployLock(ctx, req)
	if err != nil {
		log.WithFields(log.Fields{
			"module": logModule,
			"swap":   swapID,
			"error":  err,
		}).Error("lock deployment failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrDeploymentFailed, err)
	}

	if err := c.registry.Transition(swapID, domain.SwapStatusPending, domain.SwapStatusDeployed, func(record *domain.SwapRecord) {
		record.SourceTxHash = pending.Hash()
	}); err != nil {
		return nil, err
	}
	return pending, nil
}

// Claim settles a deployed swap by revealing the preimage. The secret
// is verified against the record's hash lock before anything is
// broadcast; a wrong secret fails with ErrInvalidSecret and leaves the
// record untouched. Claiming an already-claimed swap is a no-op that
// returns the stored receipt.
func (c *Coordinator) Claim(ctx context.Context, swapID string, secret [domain.SecretSize]byte) (settlement.PendingTx, error) {
	unlock := c.lockSwap(swapID)
	defer unlock()

	var req *settlement.ClaimRequest
	var done settlement.PendingTx
	err := c.registry.View(swapID, func(record *domain.SwapRecord) error {
		if record.Status == domain.SwapStatusClaimed {
			done = settledTx{hash: record.ClaimTxHash}
			return nil
		}
		if record.Status != domain.SwapStatusDeployed {
			return domain.ErrInvalidState
		}
		if !record.HashLock.VerifySecret(record.DestChain.Family, secret) {
			return domain.ErrInvalidSecret
		}
		req = &settlement.ClaimRequest{
			SwapID: record.ID,
			Chain:  record.DestChain,
			Hash:   record.HashLock.Hash,
			Secret: secret,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if done != nil {
		return done, nil
	}

	driver, err := c.driverFor(req.Chain.Family)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DriverTimeout)
	defer cancel()

	pending, err := driver.ClaimLock(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("claim swap %s: %w", swapID, err)
	}

	if err := c.registry.Transition(swapID, domain.SwapStatusDeployed, domain.SwapStatusClaimed, func(record *domain.SwapRecord) {
		record.ClaimTxHash = pending.Hash()
	}); err != nil {
		return nil, err
	}
	return pending, nil
}

// Refund recovers the escrowed funds after expiry. Before expiry it
// fails with ErrTimelockNotExpired; after a successful claim it fails
// with ErrInvalidState. Status is never mutated on a failed attempt.
func (c *Coordinator) Refund(ctx context.Context, swapID string) (settlement.PendingTx, error) {
	unlock := c.lockSwap(swapID)
	defer unlock()

	var req *settlement.RefundRequest
	err := c.registry.View(swapID, func(record *domain.SwapRecord) error {
		if record.Status != domain.SwapStatusDeployed {
			return domain.ErrInvalidState
		}
		if !record.Expired(c.clock.Now()) {
			return domain.ErrTimelockNotExpired
		}
		req = &settlement.RefundRequest{
			SwapID: record.ID,
			Chain:  record.SourceChain,
			Hash:   record.HashLock.Hash,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	driver, err := c.driverFor(req.Chain.Family)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.DriverTimeout)
	defer cancel()

	pending, err := driver.RefundLock(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("refund swap %s: %w", swapID, err)
	}

	if err := c.registry.Transition(swapID, domain.SwapStatusDeployed, domain.SwapStatusRefunded, func(record *domain.SwapRecord) {
		record.RefundTxHash = pending.Hash()
	}); err != nil {
		return nil, err
	}
	return pending, nil
}

// Monitor is a pure read of the swap's progress.
func (c *Coordinator) Monitor(swapID string) (*MonitorResult, error) {
	record, err := c.registry.Snapshot(swapID)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	return &MonitorResult{
		SwapID:        record.ID,
		Status:        record.Status,
		TimeRemaining: record.TimeRemaining(now),
		CanClaim:      record.Status == domain.SwapStatusDeployed,
		CanRefund:     record.Status == domain.SwapStatusDeployed && record.Expired(now),
		SourceTxHash:  record.SourceTxHash,
		ClaimTxHash:   record.ClaimTxHash,
		RefundTxHash:  record.RefundTxHash,
	}, nil
}

func (c *Coordinator) driverFor(family domain.ChainFamily) (settlement.ChainDriver, error) {
	driver, ok := c.drivers[family]
	if !ok {
		return nil, fmt.Errorf("no driver for family %s: %w", family, domain.ErrInvalidChain)
	}
	return driver, nil
}

func (c *Coordinator) lockSwap(swapID string) func() {
	c.mu.Lock()
	mu, ok := c.swapMu[swapID]
	if !ok {
		mu = &sync.Mutex{}
		c.swapMu[swapID] = mu
	}
	c.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// settledTx satisfies PendingTx for an already-settled swap.
type settledTx struct {
	hash string
}

func (t settledTx) Hash() string                 { return t.hash }
func (t settledTx) Wait(_ context.Context) error { return nil }
