package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// SecretSize is the byte length of a hash-lock preimage.
const SecretSize = 32

// HashLock pairs a preimage with its digest. The Secret stays with the
// initiating party until the claim step; only Hash is ever shared.
type HashLock struct {
	Secret [SecretSize]byte
	Hash   [32]byte
	Algo   SigAlgo
}

// NewHashLock samples a fresh preimage and digests it for the given
// destination family. EVM verifiers check keccak256, everything else
// in the supported set checks sha256.
func NewHashLock(dest ChainFamily) (*HashLock, error) {
	lock := &HashLock{Algo: dest.Algo()}
	if _, err := rand.Read(lock.Secret[:]); err != nil {
		return nil, fmt.Errorf("sample secret: %w", err)
	}
	lock.Hash = LockDigest(dest, lock.Secret)
	return lock, nil
}

// LockDigest hashes a preimage the way the destination family's
// on-chain verifier will.
func LockDigest(dest ChainFamily, secret [SecretSize]byte) [32]byte {
	if dest == FamilyEVM {
		var out [32]byte
		h := sha3.NewLegacyKeccak256()
		h.Write(secret[:])
		copy(out[:], h.Sum(nil))
		return out
	}
	return sha256.Sum256(secret[:])
}

// VerifySecret reports whether the candidate preimage opens the lock
// under the destination family's digest. Constant-time compare; the
// candidate came from the wire.
func (l *HashLock) VerifySecret(dest ChainFamily, secret [SecretSize]byte) bool {
	digest := LockDigest(dest, secret)
	return subtle.ConstantTimeCompare(digest[:], l.Hash[:]) == 1
}
