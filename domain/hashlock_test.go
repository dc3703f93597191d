package domain

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"
)

func TestNewHashLock(t *testing.T) {
	cases := []struct {
		desc     string
		family   ChainFamily
		wantAlgo SigAlgo
	}{
		{desc: "evm uses keccak and ecdsa", family: FamilyEVM, wantAlgo: AlgoECDSA},
		{desc: "lightning uses sha256 and ecdsa", family: FamilyLightning, wantAlgo: AlgoECDSA},
		{desc: "eddsa family uses sha256 and eddsa", family: FamilyEdDSA, wantAlgo: AlgoEdDSA},
	}

	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			lock, err := NewHashLock(c.family)
			require.NoError(t, err)
			require.Equal(t, c.wantAlgo, lock.Algo)
			require.Equal(t, LockDigest(c.family, lock.Secret), lock.Hash)
			require.True(t, lock.VerifySecret(c.family, lock.Secret))
		})
	}
}

func TestLockDigestPerFamily(t *testing.T) {
	var secret [SecretSize]byte
	copy(secret[:], "a fixed thirty-two byte preimage")

	h := sha3.NewLegacyKeccak256()
	h.Write(secret[:])
	var keccak [32]byte
	copy(keccak[:], h.Sum(nil))

	require.Equal(t, keccak, LockDigest(FamilyEVM, secret))
	require.Equal(t, [32]byte(sha256.Sum256(secret[:])), LockDigest(FamilyLightning, secret))
	require.NotEqual(t, LockDigest(FamilyEVM, secret), LockDigest(FamilyLightning, secret))
}

func TestHashLockUniqueness(t *testing.T) {
	seen := make(map[[SecretSize]byte]bool)
	for i := 0; i < 100; i++ {
		lock, err := NewHashLock(FamilyEVM)
		require.NoError(t, err)
		require.False(t, seen[lock.Secret], "secret generated twice")
		seen[lock.Secret] = true
	}
}

func TestVerifySecretRejectsWrongPreimage(t *testing.T) {
	lock, err := NewHashLock(FamilyEVM)
	require.NoError(t, err)

	wrong := lock.Secret
	wrong[0] ^= 0xff
	require.False(t, lock.VerifySecret(FamilyEVM, wrong))
}
