package entity

import "time"

// AccountBalanceData is the derived, per-account balance snapshot.
// It is immutable once published: recomputation replaces it wholesale.
type AccountBalanceData struct {
	WalletTokens          []TokenBalance     `json:"walletTokens"`
	WalletStaked          []TokenBalance     `json:"walletStaked"`
	TotalBalance          BaseCurrencyAmount `json:"totalBalance"`
	TotalBalanceYesterday BaseCurrencyAmount `json:"totalBalanceYesterday"`
	TotalBalanceUSD       float64            `json:"totalBalanceUsd"`
	PercentChange         *float64           `json:"percentChange,omitempty"`
}

// Equal compares two snapshots structurally, including list order.
func (d AccountBalanceData) Equal(o AccountBalanceData) bool {
	if d.TotalBalance != o.TotalBalance ||
		d.TotalBalanceYesterday != o.TotalBalanceYesterday ||
		d.TotalBalanceUSD != o.TotalBalanceUSD {
		return false
	}
	if (d.PercentChange == nil) != (o.PercentChange == nil) {
		return false
	}
	if d.PercentChange != nil && *d.PercentChange != *o.PercentChange {
		return false
	}
	return balancesEqual(d.WalletTokens, o.WalletTokens) && balancesEqual(d.WalletStaked, o.WalletStaked)
}

func balancesEqual(a, b []TokenBalance) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// BalanceChanged is published after a recomputation produced a different snapshot.
type BalanceChanged struct {
	ID            string    `json:"id"`
	AccountID     AccountID `json:"accountId"`
	IsFirstUpdate bool      `json:"isFirstUpdate"`
	At            time.Time `json:"at"`
}
