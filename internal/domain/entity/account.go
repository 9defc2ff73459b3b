package entity

// AccountID identifies one wallet account, e.g. "0-mainnet".
type AccountID string

// Network is the network an account lives on.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Account describes a wallet account as known by the account directory.
type Account struct {
	ID      AccountID `json:"id" yaml:"id"`
	Network Network   `json:"network" yaml:"network"`
	Type    string    `json:"type" yaml:"type"` // mnemonic, hardware, view
	Chains  []string  `json:"chains" yaml:"chains"`
}

// Supports reports whether the account holds an address on the given chain.
func (a Account) Supports(chain string) bool {
	if chain == "" {
		return false
	}
	for _, c := range a.Chains {
		if c == chain {
			return true
		}
	}
	return false
}
