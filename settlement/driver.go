package settlement

import (
	"context"

	"github.com/sambitsargam/AeroSwap/domain"
)

// ChainDriver is the chain-agnostic port for placing, claiming and
// refunding hash-time locks. Implementations exist per chain family:
// EVM (escrow contract), Lightning (hold invoice), and a mock for
// tests. The HTLC coordinator talks ONLY to this interface — never to
// an RPC client directly.
type ChainDriver interface {
	// Family returns the chain family this driver settles on.
	Family() domain.ChainFamily

	// DeployLock escrows the amount under the hash lock and broadcasts
	// the lock transaction. Returns once the transaction is accepted by
	// the network; confirmation is the returned PendingTx's concern.
	DeployLock(ctx context.Context, req *LockRequest) (PendingTx, error)

	// ClaimLock reveals the preimage to sweep the locked funds.
	ClaimLock(ctx context.Context, req *ClaimRequest) (PendingTx, error)

	// RefundLock recovers the escrowed funds after the timelock has
	// expired. Drivers may enforce the expiry on-chain as well; the
	// coordinator checks it before calling.
	RefundLock(ctx context.Context, req *RefundRequest) (PendingTx, error)
}

// PendingTx is a broadcast transaction plus a confirmation handle.
type PendingTx interface {
	// Hash is the transaction id assigned at broadcast.
	Hash() string

	// Wait blocks until the transaction is confirmed or the context
	// expires. A swap is only safely deployed for counterparty
	// purposes after Wait returns nil.
	Wait(ctx context.Context) error
}

// LockRequest carries everything a driver needs to escrow funds.
type LockRequest struct {
	SwapID    string
	Chain     domain.Chain
	Amount    uint64
	Recipient string
	Hash      [32]byte
	Timelock  int64
}

// ClaimRequest sweeps a lock by preimage. The secret lives here only
// for the duration of the call; it must not be retained or logged.
type ClaimRequest struct {
	SwapID string
	Chain  domain.Chain
	Hash   [32]byte
	Secret [domain.SecretSize]byte
}

// RefundRequest recovers an expired lock.
type RefundRequest struct {
	SwapID string
	Chain  domain.Chain
	Hash   [32]byte
}
