package service

import (
	"math/big"
	"sync"

	"balance_engine/internal/domain/entity"
)

// Reconcile overlays staking positions onto a ledger snapshot in place.
//
// With staking data present, every synthetic staked slug takes the full balance of the
// matching state, or is zeroed when there is none. A nil staking argument means the
// feed has not reported for the account yet, and the snapshot keeps its raw values.
func Reconcile(
	balances map[entity.TokenSlug]*big.Int,
	staking *entity.AccountStakingData,
	stakedSlugs []entity.TokenSlug,
) {
	if staking == nil {
		return
	}
	for _, slug := range stakedSlugs {
		state, ok := staking.StateFor(slug)
		if !ok {
			balances[slug] = new(big.Int)
			continue
		}
		balances[slug] = state.FullBalance()
	}
}

// StakingBook keeps the latest staking snapshot per account.
type StakingBook struct {
	mu        sync.RWMutex
	byAccount map[entity.AccountID]entity.AccountStakingData
}

// NewStakingBook creates an empty book.
func NewStakingBook() *StakingBook {
	return &StakingBook{byAccount: make(map[entity.AccountID]entity.AccountStakingData)}
}

// Put replaces the snapshot of data.AccountID.
func (b *StakingBook) Put(data entity.AccountStakingData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byAccount[data.AccountID] = data
}

// Get returns the snapshot of accountID, if the feed ever reported it.
func (b *StakingBook) Get(accountID entity.AccountID) (*entity.AccountStakingData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.byAccount[accountID]
	if !ok {
		return nil, false
	}
	return &data, true
}

// Remove forgets accountID.
func (b *StakingBook) Remove(accountID entity.AccountID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byAccount, accountID)
}

// Clean forgets every account.
func (b *StakingBook) Clean() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byAccount = make(map[entity.AccountID]entity.AccountStakingData)
}
