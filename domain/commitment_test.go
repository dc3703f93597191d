package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeCommitmentBindsEveryField(t *testing.T) {
	base := OrderParams{
		User:         "alice",
		ChainID:      "ethereum",
		TokenIn:      "USDC",
		TokenOut:     "WETH",
		AmountIn:     1000,
		MinAmountOut: 400,
	}
	nonce, err := NewCommitmentNonce()
	require.NoError(t, err)
	digest := ComputeCommitment(&base, nonce)

	cases := []struct {
		desc   string
		mutate func(p *OrderParams)
	}{
		{desc: "user", mutate: func(p *OrderParams) { p.User = "mallory" }},
		{desc: "chain", mutate: func(p *OrderParams) { p.ChainID = "polygon" }},
		{desc: "token in", mutate: func(p *OrderParams) { p.TokenIn = "DAI" }},
		{desc: "token out", mutate: func(p *OrderParams) { p.TokenOut = "WBTC" }},
		{desc: "amount in", mutate: func(p *OrderParams) { p.AmountIn++ }},
		{desc: "min amount out", mutate: func(p *OrderParams) { p.MinAmountOut-- }},
	}

	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			tampered := base
			c.mutate(&tampered)
			require.NotEqual(t, digest, ComputeCommitment(&tampered, nonce))
		})
	}

	// Same params, different nonce must also differ.
	other, err := NewCommitmentNonce()
	require.NoError(t, err)
	require.NotEqual(t, digest, ComputeCommitment(&base, other))

	// And the digest is deterministic for identical inputs.
	require.Equal(t, digest, ComputeCommitment(&base, nonce))
}
