package port

import (
	"context"
	"math/big"

	"balance_engine/internal/domain/entity"
)

// BalanceReader is the read-only handle of the balance engine.
// Every method returns a snapshot and never waits for a recomputation.
type BalanceReader interface {
	RawBalances(id entity.AccountID) map[entity.TokenSlug]*big.Int
	AccountBalanceData(id entity.AccountID) (entity.AccountBalanceData, bool)
	TotalBalance(ids []entity.AccountID) entity.BaseCurrencyAmount
	// TotalBalanceOfType sums mainnet accounts of the given type, or of every type when nil.
	TotalBalanceOfType(accountType *string) entity.BaseCurrencyAmount
}

// BalanceNotifier lets consumers observe balance changes.
type BalanceNotifier interface {
	Subscribe(buffer int) (<-chan entity.BalanceChanged, func())
}

// EventHandler accepts upstream events. Handle enqueues and returns immediately.
type EventHandler interface {
	Handle(event entity.Event)
}

// BalanceService is the full surface exposed to the API layer.
type BalanceService interface {
	BalanceReader
	BalanceNotifier
	EventHandler
	LoadFromCache(ctx context.Context, ids []entity.AccountID)
}
