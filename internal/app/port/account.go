package port

import "balance_engine/internal/domain/entity"

// AccountDirectory provides the accounts known to the wallet.
type AccountDirectory interface {
	Account(id entity.AccountID) (entity.Account, bool)
	Accounts() []entity.Account
}

// PolicyProvider provides per-account asset visibility preferences.
type PolicyProvider interface {
	Policy(id entity.AccountID) entity.AssetPolicy
}
