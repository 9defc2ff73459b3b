package entity

import "math/big"

// StakingType mirrors the staking kinds reported by the staking feed.
type StakingType string

const (
	StakingLiquid     StakingType = "liquid"
	StakingNominators StakingType = "nominators"
	StakingJetton     StakingType = "jetton"
	StakingEthena     StakingType = "ethena"
)

// StakingState is one staking position of an account.
// Slug is the synthetic staked slug the position is shown under.
type StakingState struct {
	ID               string      `json:"id"`
	Type             StakingType `json:"type"`
	Slug             TokenSlug   `json:"slug"`
	TokenSlug        TokenSlug   `json:"tokenSlug"`
	Balance          *big.Int    `json:"balance"`
	UnclaimedRewards *big.Int    `json:"unclaimedRewards,omitempty"`
	AnnualYield      float64     `json:"annualYield"`
}

// FullBalance is principal plus accrued yield.
func (s StakingState) FullBalance() *big.Int {
	full := new(big.Int)
	if s.Balance != nil {
		full.Add(full, s.Balance)
	}
	if s.UnclaimedRewards != nil {
		full.Add(full, s.UnclaimedRewards)
	}
	return full
}

// AccountStakingData is the latest staking snapshot of one account.
type AccountStakingData struct {
	AccountID AccountID      `json:"accountId"`
	States    []StakingState `json:"states"`
}

// StateFor returns the first state shown under slug.
func (d AccountStakingData) StateFor(slug TokenSlug) (StakingState, bool) {
	for _, s := range d.States {
		if s.Slug == slug {
			return s, true
		}
	}
	return StakingState{}, false
}
