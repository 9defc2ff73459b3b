package service

import (
	"sync"

	"balance_engine/internal/domain/entity"
)

// aggregateCache holds the published AccountBalanceData of every account together
// with the first-update flags.
type aggregateCache struct {
	mu        sync.RWMutex
	byAccount map[entity.AccountID]entity.AccountBalanceData
	notified  map[entity.AccountID]struct{}
}

func newAggregateCache() *aggregateCache {
	return &aggregateCache{
		byAccount: make(map[entity.AccountID]entity.AccountBalanceData),
		notified:  make(map[entity.AccountID]struct{}),
	}
}

func (c *aggregateCache) Get(accountID entity.AccountID) (entity.AccountBalanceData, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.byAccount[accountID]
	return data, ok
}

// CompareAndSwap stores next unless it equals the cached value.
// It reports whether the value changed and whether this is the first
// change ever published for the account.
func (c *aggregateCache) CompareAndSwap(accountID entity.AccountID, next entity.AccountBalanceData) (changed, first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.byAccount[accountID]; ok && prev.Equal(next) {
		return false, false
	}
	c.byAccount[accountID] = next
	if _, seen := c.notified[accountID]; !seen {
		c.notified[accountID] = struct{}{}
		return true, true
	}
	return true, false
}

// MarkRestored pre-satisfies the first-update flag of an account restored from storage.
func (c *aggregateCache) MarkRestored(accountID entity.AccountID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notified[accountID] = struct{}{}
}

// Remove drops the aggregate and the first-update flag of accountID.
func (c *aggregateCache) Remove(accountID entity.AccountID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byAccount, accountID)
	delete(c.notified, accountID)
}

func (c *aggregateCache) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byAccount = make(map[entity.AccountID]entity.AccountBalanceData)
	c.notified = make(map[entity.AccountID]struct{})
}
