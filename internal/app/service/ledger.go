package service

import (
	"math/big"
	"sync"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/metrics"
)

// overlayFunc rewrites a ledger snapshot in place before it is stored.
type overlayFunc func(accountID entity.AccountID, balances map[entity.TokenSlug]*big.Int)

// ledger is the raw balance table. Writes happen on the serial queue only,
// reads may come from any goroutine.
type ledger struct {
	mu          sync.RWMutex
	byAccount   map[entity.AccountID]map[entity.TokenSlug]*big.Int
	stakedSlugs []entity.TokenSlug
	logger      port.Logger
}

func newLedger(stakedSlugs []entity.TokenSlug, l port.Logger) *ledger {
	return &ledger{
		byAccount:   make(map[entity.AccountID]map[entity.TokenSlug]*big.Int),
		stakedSlugs: stakedSlugs,
		logger:      l,
	}
}

// Balances returns a deep copy of the account table. Unknown accounts give an empty map.
func (l *ledger) Balances(accountID entity.AccountID) map[entity.TokenSlug]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return copyBalances(l.byAccount[accountID])
}

// Snapshot is Balances plus whether the account has a table at all.
func (l *ledger) Snapshot(accountID entity.AccountID) (map[entity.TokenSlug]*big.Int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	table, ok := l.byAccount[accountID]
	return copyBalances(table), ok
}

// Has reports whether the account has a table.
func (l *ledger) Has(accountID entity.AccountID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byAccount[accountID]
	return ok
}

// Apply merges updates into the account table, or replaces it when removeOthers is set.
// It reports whether the stored table changed.
func (l *ledger) Apply(
	accountID entity.AccountID,
	updates map[entity.TokenSlug]*big.Int,
	removeOthers bool,
	overlay overlayFunc,
) bool {
	l.mu.RLock()
	current, existed := l.byAccount[accountID]
	var next map[entity.TokenSlug]*big.Int
	if removeOthers {
		next = make(map[entity.TokenSlug]*big.Int, len(updates))
	} else {
		next = copyBalances(current)
	}
	l.mu.RUnlock()

	for slug, amount := range updates {
		if amount == nil {
			continue
		}
		if amount.Sign() < 0 {
			l.logger.Warn("Rejected negative balance", "accountId", accountID, "slug", slug, "amount", amount.String())
			continue
		}
		next[slug] = new(big.Int).Set(amount)
	}

	for _, slug := range l.stakedSlugs {
		if _, ok := next[slug]; !ok {
			next[slug] = new(big.Int)
		}
	}
	if overlay != nil {
		overlay(accountID, next)
	}
	for _, slug := range l.stakedSlugs {
		if amount, ok := next[slug]; ok && (amount == nil || amount.Sign() == 0) {
			delete(next, slug)
		}
	}
	for slug, amount := range next {
		if amount == nil || amount.Sign() < 0 {
			delete(next, slug)
		}
	}

	changed := !existed || !balancesEqual(current, next)

	l.mu.Lock()
	l.byAccount[accountID] = next
	size := len(l.byAccount)
	l.mu.Unlock()

	metrics.LedgerAccounts.Set(float64(size))
	return changed
}

// Remove drops the account table. Idempotent.
func (l *ledger) Remove(accountID entity.AccountID) {
	l.mu.Lock()
	delete(l.byAccount, accountID)
	size := len(l.byAccount)
	l.mu.Unlock()
	metrics.LedgerAccounts.Set(float64(size))
}

// Accounts returns the ids of every account with a table.
func (l *ledger) Accounts() []entity.AccountID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]entity.AccountID, 0, len(l.byAccount))
	for id := range l.byAccount {
		ids = append(ids, id)
	}
	return ids
}

// Clean wipes every table.
func (l *ledger) Clean() {
	l.mu.Lock()
	l.byAccount = make(map[entity.AccountID]map[entity.TokenSlug]*big.Int)
	l.mu.Unlock()
	metrics.LedgerAccounts.Set(0)
}

func copyBalances(src map[entity.TokenSlug]*big.Int) map[entity.TokenSlug]*big.Int {
	dst := make(map[entity.TokenSlug]*big.Int, len(src))
	for slug, amount := range src {
		if amount == nil {
			continue
		}
		dst[slug] = new(big.Int).Set(amount)
	}
	return dst
}

func balancesEqual(a, b map[entity.TokenSlug]*big.Int) bool {
	if len(a) != len(b) {
		return false
	}
	for slug, amount := range a {
		other, ok := b[slug]
		if !ok || amount.Cmp(other) != 0 {
			return false
		}
	}
	return true
}
