package entity

import "math/big"

// Event is an upstream notification consumed by the balance engine.
type Event interface {
	isEvent()
}

// BalanceUpdate carries fresh on-chain balances for an account.
// RemoveOtherTokens replaces the whole table instead of merging.
type BalanceUpdate struct {
	AccountID         AccountID
	Balances          map[TokenSlug]*big.Int
	RemoveOtherTokens bool
}

// StakingStateUpdate carries the latest staking snapshot of an account.
type StakingStateUpdate struct {
	Data AccountStakingData
}

// AccountDeleted signals that an account was removed from the wallet.
type AccountDeleted struct {
	AccountID AccountID
}

// BaseCurrencyChanged signals a new base currency selection.
type BaseCurrencyChanged struct {
	Currency string
}

// TokenMetadataChanged signals new token metadata or prices.
type TokenMetadataChanged struct{}

// HideNoCostTokensChanged signals that the "hide no-cost tokens" toggle flipped.
type HideNoCostTokensChanged struct {
	Hide bool
}

// AssetPolicyChanged signals a token visibility change for an account.
type AssetPolicyChanged struct {
	AccountID AccountID
}

func (BalanceUpdate) isEvent()           {}
func (StakingStateUpdate) isEvent()      {}
func (AccountDeleted) isEvent()          {}
func (BaseCurrencyChanged) isEvent()     {}
func (TokenMetadataChanged) isEvent()    {}
func (HideNoCostTokensChanged) isEvent() {}
func (AssetPolicyChanged) isEvent()      {}
