package service

import (
	"math/big"

	"github.com/shopspring/decimal"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
)

// Totals are the summed valuations of one account.
type Totals struct {
	Today         float64
	Yesterday     float64
	USD           float64
	PercentChange *float64
}

// Valuation converts raw token amounts into base currency and USD figures.
// Amounts stay integers until they are multiplied by a price here.
type Valuation struct {
	tokens  port.TokenMetadataProvider
	aliases map[entity.TokenSlug]entity.TokenSlug
}

// NewValuation creates a Valuation. aliases maps slugs without metadata of their own,
// such as synthetic staked slugs, to the slug whose metadata prices them.
func NewValuation(tokens port.TokenMetadataProvider, aliases map[entity.TokenSlug]entity.TokenSlug) *Valuation {
	return &Valuation{tokens: tokens, aliases: aliases}
}

// Metadata resolves the metadata of slug, following aliases.
func (v *Valuation) Metadata(slug entity.TokenSlug) (entity.TokenMetadata, bool) {
	if md, ok := v.tokens.Token(slug); ok {
		return md, true
	}
	if alias, ok := v.aliases[slug]; ok {
		return v.tokens.Token(alias)
	}
	return entity.TokenMetadata{}, false
}

// ValueToday is the base currency value of b at today's price.
func (v *Valuation) ValueToday(b entity.TokenBalance) (float64, bool) {
	return v.value(b, func(md entity.TokenMetadata) float64 { return md.Price })
}

// ValueYesterday is the base currency value of b at the price 24h ago.
func (v *Valuation) ValueYesterday(b entity.TokenBalance) (float64, bool) {
	return v.value(b, func(md entity.TokenMetadata) float64 { return md.Price24h })
}

// ValueUSD is the USD value of b.
func (v *Valuation) ValueUSD(b entity.TokenBalance) (float64, bool) {
	return v.value(b, func(md entity.TokenMetadata) float64 { return md.PriceUSD })
}

func (v *Valuation) value(b entity.TokenBalance, price func(entity.TokenMetadata) float64) (float64, bool) {
	md, ok := v.Metadata(b.Slug)
	if !ok || !md.HasPrice {
		return 0, false
	}
	return amountValue(b.Amount, md.Decimals, price(md)), true
}

func amountValue(amount *big.Int, decimals uint8, price float64) float64 {
	if amount == nil || amount.Sign() == 0 || price == 0 {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount, -int32(decimals)).
		Mul(decimal.NewFromFloat(price)).
		Float64()
	return f
}

// Totals sums tokens and staked. Balances with an unknown price are left out and
// their slugs are returned as unresolved when no metadata exists at all.
func (v *Valuation) Totals(tokens, staked []entity.TokenBalance) (Totals, []entity.TokenSlug) {
	var t Totals
	var unresolved []entity.TokenSlug
	add := func(b entity.TokenBalance) {
		today, ok := v.ValueToday(b)
		if !ok {
			if _, known := v.Metadata(b.Slug); !known && b.Amount != nil && b.Amount.Sign() > 0 {
				unresolved = append(unresolved, b.Slug)
			}
			return
		}
		yesterday, _ := v.ValueYesterday(b)
		usd, _ := v.ValueUSD(b)
		t.Today += today
		t.Yesterday += yesterday
		t.USD += usd
	}
	for _, b := range tokens {
		add(b)
	}
	for _, b := range staked {
		add(b)
	}
	t.PercentChange = percentChange(t.Today, t.Yesterday)
	return t, unresolved
}

func percentChange(today, yesterday float64) *float64 {
	if yesterday <= 0 {
		return nil
	}
	change := (today - yesterday) / yesterday
	return &change
}
