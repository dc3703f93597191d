package domain

// ChainFamily classifies the settlement layer a chain belongs to. The
// family decides which hash function guards a lock and which signature
// scheme the destination verifier expects.
type ChainFamily string

const (
	FamilyEVM       ChainFamily = "EVM"
	FamilyLightning ChainFamily = "LIGHTNING"
	FamilyEdDSA     ChainFamily = "EDDSA"
)

// SigAlgo is the signature scheme of a chain family's verifier.
type SigAlgo string

const (
	AlgoECDSA SigAlgo = "ECDSA"
	AlgoEdDSA SigAlgo = "EDDSA"
)

// Chain identifies a supported network. This is strictly identity
// metadata — balances and RPC endpoints live on the adapters.
type Chain struct {
	ID     string
	Name   string
	Family ChainFamily
}

var knownChains = map[string]Chain{
	"ethereum":  {ID: "ethereum", Name: "Ethereum", Family: FamilyEVM},
	"polygon":   {ID: "polygon", Name: "Polygon", Family: FamilyEVM},
	"arbitrum":  {ID: "arbitrum", Name: "Arbitrum One", Family: FamilyEVM},
	"base":      {ID: "base", Name: "Base", Family: FamilyEVM},
	"lightning": {ID: "lightning", Name: "Bitcoin Lightning", Family: FamilyLightning},
	"solana":    {ID: "solana", Name: "Solana", Family: FamilyEdDSA},
}

// ChainByID resolves a chain identifier against the supported set.
func ChainByID(id string) (Chain, error) {
	chain, ok := knownChains[id]
	if !ok {
		return Chain{}, ErrInvalidChain
	}
	return chain, nil
}

// Algo returns the signature scheme of the family's verifier.
func (f ChainFamily) Algo() SigAlgo {
	if f == FamilyEdDSA {
		return AlgoEdDSA
	}
	return AlgoECDSA
}
