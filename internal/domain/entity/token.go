package entity

import "math/big"

// TokenSlug is a stable identifier of a fungible token type.
type TokenSlug string

// TokenMetadata holds the details of a specific token.
// Price fields are only meaningful when HasPrice is true.
type TokenMetadata struct {
	Slug        TokenSlug `json:"slug"`
	Symbol      string    `json:"symbol"`
	Chain       string    `json:"chain"`
	Decimals    uint8     `json:"decimals"`
	IsNative    bool      `json:"isNative"`
	IsPriceless bool      `json:"isPriceless"`

	HasPrice bool    `json:"-"`
	Price    float64 `json:"-"` // base currency, today
	Price24h float64 `json:"-"` // base currency, 24h ago
	PriceUSD float64 `json:"-"`
}

// TokenBalance is the amount of a specific token held by an account.
type TokenBalance struct {
	Slug      TokenSlug `json:"slug"`
	Amount    *big.Int  `json:"amount"`
	IsStaking bool      `json:"isStaking"`
}

// NewTokenBalance copies amount so the balance never aliases ledger storage.
func NewTokenBalance(slug TokenSlug, amount *big.Int, isStaking bool) TokenBalance {
	a := new(big.Int)
	if amount != nil {
		a.Set(amount)
	}
	return TokenBalance{Slug: slug, Amount: a, IsStaking: isStaking}
}

// Equal compares two balances by value.
func (b TokenBalance) Equal(o TokenBalance) bool {
	if b.Slug != o.Slug || b.IsStaking != o.IsStaking {
		return false
	}
	return amountOrZero(b.Amount).Cmp(amountOrZero(o.Amount)) == 0
}

// TokenQuote is a USD price observation for one token.
type TokenQuote struct {
	Slug        TokenSlug `json:"slug"`
	PriceUSD    float64   `json:"priceUsd"`
	PriceUSD24h float64   `json:"priceUsd24h"`
}

// BaseCurrencyAmount is a value expressed in the user-selected base currency.
type BaseCurrencyAmount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

var zero = new(big.Int)

func amountOrZero(a *big.Int) *big.Int {
	if a == nil {
		return zero
	}
	return a
}
