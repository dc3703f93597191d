// Package lnd is the Lightning-family chain driver. A hash-time lock
// maps onto a hold invoice: deploy adds the invoice, claim settles it
// with the preimage, refund cancels it.
package lnd

import (
	"context"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/settlement"
)

var logModule = "lnddriver"

// Driver implements settlement.ChainDriver over a LightningNode.
type Driver struct {
	node settlement.LightningNode
}

func NewDriver(node settlement.LightningNode) *Driver {
	return &Driver{node: node}
}

func (d *Driver) Family() domain.ChainFamily { return domain.FamilyLightning }

// DeployLock adds a hold invoice for the lock amount. The invoice
// expiry mirrors the swap timelock; LND cancels the hold on its own
// after that, which is the refund path happening chain-side.
func (d *Driver) DeployLock(ctx context.Context, req *settlement.LockRequest) (settlement.PendingTx, error) {
	hash := hex.EncodeToString(req.Hash[:])
	memo := fmt.Sprintf("swap %s", req.SwapID)

	if _, err := d.node.AddHoldInvoice(ctx, memo, hash, req.Amount, req.Timelock); err != nil {
		return nil, fmt.Errorf("add hold invoice: %w", err)
	}

	log.WithFields(log.Fields{
		"module": logModule,
		"swap":   req.SwapID,
		"amount": req.Amount,
	}).Info("hold invoice added")

	return &invoiceTx{driver: d, hash: hash, id: "ln_hold_" + hash[:16], accepted: true}, nil
}

// ClaimLock settles the hold invoice by revealing the preimage.
func (d *Driver) ClaimLock(ctx context.Context, req *settlement.ClaimRequest) (settlement.PendingTx, error) {
	preimage := hex.EncodeToString(req.Secret[:])
	if err := d.node.SettleInvoice(ctx, preimage); err != nil {
		return nil, fmt.Errorf("settle invoice: %w", err)
	}

	hash := hex.EncodeToString(req.Hash[:])
	return &invoiceTx{driver: d, hash: hash, id: "ln_settle_" + hash[:16], wantState: "SETTLED"}, nil
}

// RefundLock cancels the hold invoice, releasing the payer's HTLC.
func (d *Driver) RefundLock(ctx context.Context, req *settlement.RefundRequest) (settlement.PendingTx, error) {
	hash := hex.EncodeToString(req.Hash[:])
	if err := d.node.CancelInvoice(ctx, hash); err != nil {
		return nil, fmt.Errorf("cancel invoice: %w", err)
	}
	return &invoiceTx{driver: d, hash: hash, id: "ln_cancel_" + hash[:16], wantState: "CANCELED"}, nil
}

// invoiceTx satisfies PendingTx. There is no on-chain transaction on
// Lightning; confirmation means the invoice reached the target state.
type invoiceTx struct {
	driver    *Driver
	hash      string
	id        string
	wantState string
	accepted  bool
}

func (t *invoiceTx) Hash() string { return t.id }

func (t *invoiceTx) Wait(ctx context.Context) error {
	want := t.wantState
	if t.accepted {
		// Deploy is final once the counterparty's HTLC is held.
		want = "ACCEPTED"
	}

	updates, errs, err := t.driver.node.SubscribeSingleInvoice(ctx, t.hash)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("invoice stream closed before %s", want)
			}
			if update.State == want {
				return nil
			}
			if update.State == "CANCELED" && want != "CANCELED" {
				return fmt.Errorf("invoice canceled while waiting for %s", want)
			}
		}
	}
}
