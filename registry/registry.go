// Package registry owns every SwapRecord. All lifecycle transitions go
// through a compare-and-set guard so that a claim racing a refund
// resolves to exactly one winner.
package registry

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
)

var logModule = "registry"

// Registry is the in-memory swap store. Records are held by reference;
// callers outside the owning coordinator only ever see snapshots.
type Registry struct {
	mu    sync.RWMutex
	swaps map[string]*domain.SwapRecord
	bus   *events.Bus
}

func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{swaps: make(map[string]*domain.SwapRecord), bus: bus}
}

// Add stores a freshly created record.
func (r *Registry) Add(record *domain.SwapRecord) {
	r.mu.Lock()
	r.swaps[record.ID] = record
	r.mu.Unlock()

	r.publish(record)
	log.WithFields(log.Fields{
		"module": logModule,
		"swap":   record.ID,
		"status": record.Status,
	}).Info("swap registered")
}

// Snapshot returns a copy of the record safe to hand outside the
// coordinator. The hash lock is copied without its secret.
func (r *Registry) Snapshot(swapID string) (*domain.SwapRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.swaps[swapID]
	if !ok {
		return nil, domain.ErrSwapNotFound
	}

	copied := *record
	if record.HashLock != nil {
		copied.HashLock = &domain.HashLock{Hash: record.HashLock.Hash, Algo: record.HashLock.Algo}
	}
	return &copied, nil
}

// View runs fn against the live record under the read lock. fn must
// not mutate or retain the record.
func (r *Registry) View(swapID string, fn func(*domain.SwapRecord) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.swaps[swapID]
	if !ok {
		return domain.ErrSwapNotFound
	}
	return fn(record)
}

// Transition moves a record from one status to another, applying
// mutate under the same critical section. Returns ErrInvalidState if
// the record is not in the expected source status — the caller lost a
// race or skipped a step, and the record is untouched either way.
func (r *Registry) Transition(swapID string, from, to domain.SwapStatus, mutate func(*domain.SwapRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.swaps[swapID]
	if !ok {
		return domain.ErrSwapNotFound
	}
	if record.Status != from {
		return domain.ErrInvalidState
	}

	record.Status = to
	if mutate != nil {
		mutate(record)
	}

	r.publish(record)
	log.WithFields(log.Fields{
		"module": logModule,
		"swap":   swapID,
		"from":   from,
		"to":     to,
	}).Info("swap transitioned")
	return nil
}

func (r *Registry) publish(record *domain.SwapRecord) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.Event{
		Type:    events.TypeSwapStatus,
		Subject: record.ID,
		Status:  string(record.Status),
	})
}
