package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// CommitmentStatus is the lifecycle state of a blind-committed order.
type CommitmentStatus string

const (
	CommitmentStatusCommitted CommitmentStatus = "COMMITTED"
	CommitmentStatusRevealed  CommitmentStatus = "REVEALED"
	CommitmentStatusExecuted  CommitmentStatus = "EXECUTED"
	CommitmentStatusFailed    CommitmentStatus = "FAILED"
)

// OrderParams are the terms a user hides behind a commitment. The
// digest binds every field, so tampering with any of them at reveal
// time is detectable.
type OrderParams struct {
	User         string
	ChainID      string
	TokenIn      string
	TokenOut     string
	AmountIn     uint64
	MinAmountOut uint64
}

// Commitment is one entry in the commit-reveal store.
type Commitment struct {
	OrderID     string
	Commitment  string // hex digest over (params ‖ nonce)
	Nonce       [32]byte
	Params      *OrderParams // nil until revealed
	Status      CommitmentStatus
	SubmittedAt time.Time
	RevealedAt  time.Time
	ExecutedOut uint64
	FailReason  string
}

// NewCommitmentNonce samples the blinding nonce.
func NewCommitmentNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("sample commitment nonce: %w", err)
	}
	return nonce, nil
}

// ComputeCommitment digests the order terms together with the nonce.
// Field order is fixed; both sides of the protocol must produce the
// same bytes for the same terms.
func ComputeCommitment(params *OrderParams, nonce [32]byte) string {
	h := sha256.New()
	h.Write([]byte(params.User))
	h.Write([]byte{0})
	h.Write([]byte(params.ChainID))
	h.Write([]byte{0})
	h.Write([]byte(params.TokenIn))
	h.Write([]byte{0})
	h.Write([]byte(params.TokenOut))
	h.Write([]byte{0})
	var amounts [16]byte
	binary.BigEndian.PutUint64(amounts[:8], params.AmountIn)
	binary.BigEndian.PutUint64(amounts[8:], params.MinAmountOut)
	h.Write(amounts[:])
	h.Write(nonce[:])
	return hex.EncodeToString(h.Sum(nil))
}
