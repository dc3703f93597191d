package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// SwapStatus is the lifecycle state of a cross-chain swap.
type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusDeployed SwapStatus = "DEPLOYED"
	SwapStatusClaimed  SwapStatus = "CLAIMED"
	SwapStatusRefunded SwapStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusClaimed || s == SwapStatusRefunded
}

// SwapRecord is the authoritative state of one hash-time-locked swap.
// It is owned by the registry; every mutation goes through a guarded
// transition there.
type SwapRecord struct {
	ID          string
	SourceChain Chain
	DestChain   Chain
	Amount      uint64 // smallest-unit denomination
	Recipient   string
	HashLock    *HashLock
	Timelock    int64 // absolute expiry, unix seconds
	Status      SwapStatus

	SourceTxHash string
	ClaimTxHash  string
	RefundTxHash string
	CreatedAt    time.Time
}

// NewSwapID derives an identifier from the creation time and a random
// nonce. The id doubles as an unguessable reference before the swap is
// announced, so plain counters are not acceptable here.
func NewSwapID(now time.Time) (string, error) {
	var buf [40]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(now.UnixNano()))
	if _, err := rand.Read(buf[8:]); err != nil {
		return "", fmt.Errorf("sample swap id nonce: %w", err)
	}
	sum := sha256.Sum256(buf[:])
	return hex.EncodeToString(sum[:16]), nil
}

// TimeRemaining returns the seconds left until the timelock expires,
// clamped at zero.
func (r *SwapRecord) TimeRemaining(now time.Time) int64 {
	remaining := r.Timelock - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the refund path has opened.
func (r *SwapRecord) Expired(now time.Time) bool {
	return now.Unix() > r.Timelock
}
