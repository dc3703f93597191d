package settlement

import "context"

// LightningNode is the subset of an LND node the Lightning chain
// driver needs. On Lightning a hash-time lock is a hold invoice: the
// payment hash is the lock, settling with the preimage is the claim,
// cancelling is the refund.
type LightningNode interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	AddHoldInvoice(ctx context.Context, memo, hash string, amount uint64, expiry int64) (string, error)
	SettleInvoice(ctx context.Context, preimage string) error
	CancelInvoice(ctx context.Context, hash string) error

	// SubscribeSingleInvoice streams state updates for one invoice
	// until it reaches SETTLED or CANCELED.
	SubscribeSingleInvoice(ctx context.Context, hash string) (<-chan *InvoiceUpdate, <-chan error, error)
}

// NodeInfo is basic identity of the connected node.
type NodeInfo struct {
	Pubkey  string
	Alias   string
	Network string
	Synced  bool
}

// InvoiceUpdate is one state change of a hold invoice.
type InvoiceUpdate struct {
	Hash   string
	State  string // OPEN, ACCEPTED, SETTLED, CANCELED
	Amount uint64
}
