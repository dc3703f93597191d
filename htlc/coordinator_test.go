package htlc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sambitsargam/AeroSwap/adapters/mock"
	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/events"
	"github.com/sambitsargam/AeroSwap/registry"
	"github.com/sambitsargam/AeroSwap/settlement"
)

type fixture struct {
	coordinator *Coordinator
	evm         *mock.ChainDriver
	lightning   *mock.ChainDriver
	clock       *mock.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		evm:       mock.NewChainDriver(domain.FamilyEVM),
		lightning: mock.NewChainDriver(domain.FamilyLightning),
		clock:     mock.NewClock(time.Unix(1_700_000_000, 0)),
	}
	f.coordinator = NewCoordinator(
		registry.NewRegistry(events.NewBus()),
		[]settlement.ChainDriver{f.evm, f.lightning},
		f.clock,
		Config{},
	)
	return f
}

func (f *fixture) deployedSwap(t *testing.T, timelock time.Duration) *domain.SwapRecord {
	t.Helper()

	record, err := f.coordinator.CreateParams("ethereum", "polygon", 1_000_000, "0xrecipient", timelock)
	require.NoError(t, err)

	_, err = f.coordinator.Deploy(context.Background(), record.ID)
	require.NoError(t, err)
	return record
}

func TestCreateParams(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.CreateParams("ethereum", "polygon", 500, "0xrecipient", time.Hour)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusPending, record.Status)
	require.Equal(t, f.clock.Now().Add(time.Hour).Unix(), record.Timelock)
	require.Equal(t, domain.LockDigest(domain.FamilyEVM, record.HashLock.Secret), record.HashLock.Hash)

	_, err = f.coordinator.CreateParams("ethereum", "dogechain", 500, "0xrecipient", time.Hour)
	require.ErrorIs(t, err, domain.ErrInvalidChain)

	_, err = f.coordinator.CreateParams("tron", "polygon", 500, "0xrecipient", time.Hour)
	require.ErrorIs(t, err, domain.ErrInvalidChain)
}

func TestDeployFailureLeavesPending(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.CreateParams("ethereum", "polygon", 500, "0xrecipient", time.Hour)
	require.NoError(t, err)

	f.evm.FailNext(context.DeadlineExceeded)
	_, err = f.coordinator.Deploy(context.Background(), record.ID)
	require.ErrorIs(t, err, domain.ErrDeploymentFailed)

	status, err := f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusPending, status.Status)

	// Retry succeeds from the same state.
	_, err = f.coordinator.Deploy(context.Background(), record.ID)
	require.NoError(t, err)
}

func TestClaimVerifiesSecret(t *testing.T) {
	f := newFixture(t)
	record := f.deployedSwap(t, time.Hour)

	wrong := record.HashLock.Secret
	wrong[0] ^= 0xff
	_, err := f.coordinator.Claim(context.Background(), record.ID, wrong)
	require.ErrorIs(t, err, domain.ErrInvalidSecret)

	status, err := f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusDeployed, status.Status)

	pending, err := f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.NoError(t, err)

	status, err = f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusClaimed, status.Status)
	require.Equal(t, pending.Hash(), status.ClaimTxHash)
}

func TestClaimIsIdempotent(t *testing.T) {
	f := newFixture(t)
	record := f.deployedSwap(t, time.Hour)

	first, err := f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.NoError(t, err)

	second, err := f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.NoError(t, err)
	require.Equal(t, first.Hash(), second.Hash())
}

func TestRefundLifecycle(t *testing.T) {
	f := newFixture(t)
	record := f.deployedSwap(t, time.Minute)

	// Immediately attempting a refund fails and mutates nothing.
	_, err := f.coordinator.Refund(context.Background(), record.ID)
	require.ErrorIs(t, err, domain.ErrTimelockNotExpired)

	status, err := f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusDeployed, status.Status)
	require.False(t, status.CanRefund)
	require.True(t, status.CanClaim)

	// Past the timelock the refund goes through.
	f.clock.Advance(61 * time.Second)
	status, err = f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.True(t, status.CanRefund)

	_, err = f.coordinator.Refund(context.Background(), record.ID)
	require.NoError(t, err)

	status, err = f.coordinator.Monitor(record.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SwapStatusRefunded, status.Status)

	// A later claim with the correct secret is refused: claimed and
	// refunded are mutually exclusive terminal states.
	_, err = f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestRefundRefusedAfterClaim(t *testing.T) {
	f := newFixture(t)
	record := f.deployedSwap(t, time.Minute)

	_, err := f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	_, err = f.coordinator.Refund(context.Background(), record.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestClaimRequiresDeployment(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.CreateParams("ethereum", "polygon", 500, "0xrecipient", time.Hour)
	require.NoError(t, err)

	_, err = f.coordinator.Claim(context.Background(), record.ID, record.HashLock.Secret)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMonitorUnknownSwap(t *testing.T) {
	f := newFixture(t)

	_, err := f.coordinator.Monitor("missing")
	require.ErrorIs(t, err, domain.ErrSwapNotFound)
}

func TestLightningDestinationUsesSha256(t *testing.T) {
	f := newFixture(t)

	record, err := f.coordinator.CreateParams("ethereum", "lightning", 500, "invoice-destination", time.Hour)
	require.NoError(t, err)
	require.Equal(t, domain.LockDigest(domain.FamilyLightning, record.HashLock.Secret), record.HashLock.Hash)
	require.Equal(t, domain.AlgoECDSA, record.HashLock.Algo)
}
