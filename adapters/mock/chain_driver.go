// Package mock provides in-memory test doubles for the settlement
// ports: a chain driver, a quote oracle and a controllable clock.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/settlement"
)

// ChainDriver implements settlement.ChainDriver against an in-memory
// ledger of locks. Tests can inject failures and broadcast delays.
type ChainDriver struct {
	family domain.ChainFamily

	mu       sync.Mutex
	locks    map[[32]byte]*lockEntry
	failNext error
	delay    time.Duration
	seq      int
}

type lockEntry struct {
	req     *settlement.LockRequest
	claimed bool
}

func NewChainDriver(family domain.ChainFamily) *ChainDriver {
	return &ChainDriver{family: family, locks: make(map[[32]byte]*lockEntry)}
}

func (d *ChainDriver) Family() domain.ChainFamily { return d.family }

// FailNext makes the next driver call return err, then clears itself.
func (d *ChainDriver) FailNext(err error) {
	d.mu.Lock()
	d.failNext = err
	d.mu.Unlock()
}

// SetDelay makes every call sleep first, for timeout tests.
func (d *ChainDriver) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

func (d *ChainDriver) DeployLock(ctx context.Context, req *settlement.LockRequest) (settlement.PendingTx, error) {
	if err := d.begin(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.locks[req.Hash]; exists {
		return nil, fmt.Errorf("lock already deployed for hash")
	}
	d.locks[req.Hash] = &lockEntry{req: req}
	d.seq++

	log.WithFields(log.Fields{
		"module": "mockchain",
		"swap":   req.SwapID,
		"amount": req.Amount,
	}).Debug("lock deployed")
	return &pendingTx{hash: fmt.Sprintf("mock_deploy_%s_%d", req.SwapID, d.seq)}, nil
}

func (d *ChainDriver) ClaimLock(ctx context.Context, req *settlement.ClaimRequest) (settlement.PendingTx, error) {
	if err := d.begin(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.locks[req.Hash]
	if !ok {
		return nil, fmt.Errorf("no lock for hash")
	}
	if entry.claimed {
		return nil, fmt.Errorf("lock already claimed")
	}
	if domain.LockDigest(req.Chain.Family, req.Secret) != req.Hash {
		return nil, domain.ErrInvalidSecret
	}

	entry.claimed = true
	d.seq++
	return &pendingTx{hash: fmt.Sprintf("mock_claim_%s_%d", req.SwapID, d.seq)}, nil
}

func (d *ChainDriver) RefundLock(ctx context.Context, req *settlement.RefundRequest) (settlement.PendingTx, error) {
	if err := d.begin(ctx); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.locks[req.Hash]
	if !ok {
		return nil, fmt.Errorf("no lock for hash")
	}
	if entry.claimed {
		return nil, fmt.Errorf("lock already claimed")
	}

	delete(d.locks, req.Hash)
	d.seq++
	return &pendingTx{hash: fmt.Sprintf("mock_refund_%s_%d", req.SwapID, d.seq)}, nil
}

// Deployed reports whether an unclaimed lock exists for the hash.
func (d *ChainDriver) Deployed(hash [32]byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.locks[hash]
	return ok && !entry.claimed
}

func (d *ChainDriver) begin(ctx context.Context) error {
	d.mu.Lock()
	delay := d.delay
	err := d.failNext
	d.failNext = nil
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

type pendingTx struct {
	hash string
}

func (t *pendingTx) Hash() string                 { return t.hash }
func (t *pendingTx) Wait(_ context.Context) error { return nil }
