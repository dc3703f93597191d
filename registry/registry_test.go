package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
)

func newRecord(t *testing.T) *domain.SwapRecord {
	t.Helper()

	lock, err := domain.NewHashLock(domain.FamilyEVM)
	require.NoError(t, err)
	id, err := domain.NewSwapID(time.Now())
	require.NoError(t, err)

	return &domain.SwapRecord{
		ID:       id,
		Amount:   1000,
		HashLock: lock,
		Timelock: time.Now().Add(time.Hour).Unix(),
		Status:   domain.SwapStatusPending,
	}
}

func TestSnapshotRedactsSecret(t *testing.T) {
	reg := NewRegistry(nil)
	record := newRecord(t)
	reg.Add(record)

	snapshot, err := reg.Snapshot(record.ID)
	require.NoError(t, err)
	require.Equal(t, record.HashLock.Hash, snapshot.HashLock.Hash)
	require.Equal(t, [domain.SecretSize]byte{}, snapshot.HashLock.Secret)

	_, err = reg.Snapshot("missing")
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestTransitionGuardsSourceStatus(t *testing.T) {
	reg := NewRegistry(events.NewBus())
	record := newRecord(t)
	reg.Add(record)

	err := reg.Transition(record.ID, domain.SwapStatusDeployed, domain.SwapStatusClaimed, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, reg.Transition(record.ID, domain.SwapStatusPending, domain.SwapStatusDeployed, func(r *domain.SwapRecord) {
		r.SourceTxHash = "0xabc"
	}))

	snapshot, err := reg.Snapshot(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusDeployed, snapshot.Status)
	require.Equal(t, "0xabc", snapshot.SourceTxHash)
}

func TestTransitionRaceHasOneWinner(t *testing.T) {
	reg := NewRegistry(nil)
	record := newRecord(t)
	record.Status = domain.SwapStatusDeployed
	reg.Add(record)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	targets := []domain.SwapStatus{domain.SwapStatusClaimed, domain.SwapStatusRefunded}
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target domain.SwapStatus) {
			defer wg.Done()
			errs[i] = reg.Transition(record.ID, domain.SwapStatusDeployed, target, nil)
		}(i, target)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, domain.ErrInvalidState)
		}
	}
	require.Equal(t, 1, winners)

	snapshot, err := reg.Snapshot(record.ID)
	require.NoError(t, err)
	require.True(t, snapshot.Status.Terminal())
}
