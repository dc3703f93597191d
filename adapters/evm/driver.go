// Package evm is the EVM-family chain driver. Locks live in a single
// deployed HTLC escrow contract; deploy/claim/refund are calls against
// it signed with the operator key.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"

	"github.com/sambitsargam/AeroSwap/domain"
	"github.com/sambitsargam/AeroSwap/settlement"
)

var logModule = "evmdriver"

// escrowABI is the interface of the HTLC escrow contract.
const escrowABI = `[
	{"name":"newLock","type":"function","inputs":[{"name":"hash","type":"bytes32"},{"name":"recipient","type":"address"},{"name":"timelock","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
	{"name":"claim","type":"function","inputs":[{"name":"hash","type":"bytes32"},{"name":"secret","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
	{"name":"refund","type":"function","inputs":[{"name":"hash","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"}
]`

// Config locates the escrow contract and the operator key.
type Config struct {
	RPCEndpoint string
	ChainID     int64
	Escrow      string // escrow contract address
	PrivKeyHex  string
	MinConfs    uint64
}

// Driver implements settlement.ChainDriver against an EVM node.
type Driver struct {
	client   *ethclient.Client
	abi      abi.ABI
	escrow   common.Address
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	minConfs uint64
}

func NewDriver(cfg Config) (*Driver, error) {
	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCEndpoint, err)
	}

	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	if cfg.MinConfs == 0 {
		cfg.MinConfs = 1
	}
	return &Driver{
		client:   client,
		abi:      parsed,
		escrow:   common.HexToAddress(cfg.Escrow),
		key:      key,
		chainID:  big.NewInt(cfg.ChainID),
		minConfs: cfg.MinConfs,
	}, nil
}

func (d *Driver) Family() domain.ChainFamily { return domain.FamilyEVM }

func (d *Driver) DeployLock(ctx context.Context, req *settlement.LockRequest) (settlement.PendingTx, error) {
	calldata, err := d.abi.Pack("newLock",
		[32]byte(req.Hash),
		common.HexToAddress(req.Recipient),
		big.NewInt(req.Timelock),
	)
	if err != nil {
		return nil, fmt.Errorf("pack newLock: %w", err)
	}

	tx, err := d.submit(ctx, calldata, new(big.Int).SetUint64(req.Amount))
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"module": logModule,
		"swap":   req.SwapID,
		"tx":     tx.Hash().Hex(),
	}).Info("lock transaction broadcast")
	return &pendingTx{driver: d, tx: tx}, nil
}

func (d *Driver) ClaimLock(ctx context.Context, req *settlement.ClaimRequest) (settlement.PendingTx, error) {
	calldata, err := d.abi.Pack("claim", [32]byte(req.Hash), [32]byte(req.Secret))
	if err != nil {
		return nil, fmt.Errorf("pack claim: %w", err)
	}

	tx, err := d.submit(ctx, calldata, nil)
	if err != nil {
		return nil, err
	}
	return &pendingTx{driver: d, tx: tx}, nil
}

func (d *Driver) RefundLock(ctx context.Context, req *settlement.RefundRequest) (settlement.PendingTx, error) {
	calldata, err := d.abi.Pack("refund", [32]byte(req.Hash))
	if err != nil {
		return nil, fmt.Errorf("pack refund: %w", err)
	}

	tx, err := d.submit(ctx, calldata, nil)
	if err != nil {
		return nil, err
	}
	return &pendingTx{driver: d, tx: tx}, nil
}

// submit signs and broadcasts a call against the escrow contract.
func (d *Driver) submit(ctx context.Context, calldata []byte, value *big.Int) (*types.Transaction, error) {
	from := crypto.PubkeyToAddress(d.key.PublicKey)
	nonce, err := d.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetch nonce: %w", err)
	}

	gasPrice, err := d.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := d.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &d.escrow,
		Value: value,
		Data:  calldata,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTransaction(nonce, d.escrow, value, gasLimit, gasPrice, calldata)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(d.chainID), d.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}

	if err := d.client.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("broadcast tx: %w", err)
	}
	return signed, nil
}

type pendingTx struct {
	driver *Driver
	tx     *types.Transaction
}

func (t *pendingTx) Hash() string { return t.tx.Hash().Hex() }

func (t *pendingTx) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, t.driver.client, t.tx)
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", t.tx.Hash().Hex())
	}
	return t.waitConfirmations(ctx, receipt.BlockNumber.Uint64())
}

// waitConfirmations blocks until the mined block is minConfs deep.
func (t *pendingTx) waitConfirmations(ctx context.Context, mined uint64) error {
	if t.driver.minConfs <= 1 {
		return nil
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		head, err := t.driver.client.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("fetch head: %w", err)
		}
		if head >= mined+t.driver.minConfs-1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
