// Package lnd implements settlement.LightningNode over lnrpc.
package lnd

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"

	"github.com/sambitsargam/AeroSwap/settlement"
)

// Client implements settlement.LightningNode using lnrpc.
type Client struct {
	lnClient       lnrpc.LightningClient
	invoicesClient invoicesrpc.InvoicesClient
	conn           *grpc.ClientConn
}

// Config holds connection configuration.
type Config struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
	Network      string
}

// NewClient dials LND with TLS and macaroon credentials.
func NewClient(cfg Config) (*Client, error) {
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert: %v", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read macaroon: %v", err)
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal macaroon: %v", err)
	}

	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("failed to create macaroon credential: %v", err)
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	}

	conn, err := grpc.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial LND: %v", err)
	}

	return &Client{
		lnClient:       lnrpc.NewLightningClient(conn),
		invoicesClient: invoicesrpc.NewInvoicesClient(conn),
		conn:           conn,
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetInfo returns basic information about the connected LND node.
func (c *Client) GetInfo(ctx context.Context) (*settlement.NodeInfo, error) {
	resp, err := c.lnClient.GetInfo(ctx, &lnrpc.GetInfoRequest{})
	if err != nil {
		return nil, err
	}
	return &settlement.NodeInfo{
		Pubkey:  resp.IdentityPubkey,
		Alias:   resp.Alias,
		Network: resp.Chains[0].Network,
		Synced:  resp.SyncedToChain,
	}, nil
}

// AddHoldInvoice adds a hold invoice locked to the given payment hash.
func (c *Client) AddHoldInvoice(ctx context.Context, memo, hash string, amount uint64, expiry int64) (string, error) {
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return "", fmt.Errorf("invalid hash: %v", err)
	}

	req := &invoicesrpc.AddHoldInvoiceRequest{
		Memo:       memo,
		Hash:       hashBytes,
		Value:      int64(amount),
		Expiry:     expiry,
		CltvExpiry: 40,
	}

	resp, err := c.invoicesClient.AddHoldInvoice(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to add hold invoice: %v", err)
	}
	return resp.PaymentRequest, nil
}

// SettleInvoice settles a hold invoice with the given preimage.
func (c *Client) SettleInvoice(ctx context.Context, preimage string) error {
	preimageBytes, err := hex.DecodeString(preimage)
	if err != nil {
		return fmt.Errorf("invalid preimage: %v", err)
	}

	if _, err := c.invoicesClient.SettleInvoice(ctx, &invoicesrpc.SettleInvoiceMsg{
		Preimage: preimageBytes,
	}); err != nil {
		return fmt.Errorf("failed to settle invoice: %v", err)
	}
	return nil
}

// CancelInvoice cancels a hold invoice.
func (c *Client) CancelInvoice(ctx context.Context, hash string) error {
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return fmt.Errorf("invalid hash: %v", err)
	}

	if _, err := c.invoicesClient.CancelInvoice(ctx, &invoicesrpc.CancelInvoiceMsg{
		PaymentHash: hashBytes,
	}); err != nil {
		return fmt.Errorf("failed to cancel invoice: %v", err)
	}
	return nil
}

// SubscribeSingleInvoice streams state updates for a specific invoice
// until it reaches a final state.
func (c *Client) SubscribeSingleInvoice(ctx context.Context, hash string) (<-chan *settlement.InvoiceUpdate, <-chan error, error) {
	hashBytes, err := hex.DecodeString(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid hash: %v", err)
	}

	stream, err := c.invoicesClient.SubscribeSingleInvoice(ctx, &invoicesrpc.SubscribeSingleInvoiceRequest{
		RHash: hashBytes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to subscribe to invoice: %v", err)
	}

	updateChan := make(chan *settlement.InvoiceUpdate)
	errChan := make(chan error, 1)

	go func() {
		defer close(updateChan)
		defer close(errChan)

		for {
			invoice, err := stream.Recv()
			if err != nil {
				errChan <- err
				return
			}

			var state string
			switch invoice.State {
			case lnrpc.Invoice_OPEN:
				state = "OPEN"
			case lnrpc.Invoice_SETTLED:
				state = "SETTLED"
			case lnrpc.Invoice_CANCELED:
				state = "CANCELED"
			case lnrpc.Invoice_ACCEPTED:
				state = "ACCEPTED"
			}

			updateChan <- &settlement.InvoiceUpdate{
				Hash:   hex.EncodeToString(invoice.RHash),
				State:  state,
				Amount: uint64(invoice.Value),
			}

			if state == "SETTLED" || state == "CANCELED" {
				return
			}
		}
	}()

	return updateChan, errChan, nil
}
