package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/logger"
)

func TestTokenRegistry_ConvertsToBaseCurrency(t *testing.T) {
	r := newTestRegistry(t)

	md, ok := r.Token(slugTON)
	require.True(t, ok)
	assert.True(t, md.HasPrice)
	assert.Equal(t, 2.0, md.Price)
	assert.Equal(t, 2.0, md.PriceUSD)

	require.NoError(t, r.SetBaseCurrency("eur"))
	assert.Equal(t, "EUR", r.BaseCurrency())
	md, _ = r.Token(slugTON)
	assert.Equal(t, 1.0, md.Price)
	assert.Equal(t, 0.8, md.Price24h)
	assert.Equal(t, 2.0, md.PriceUSD)

	assert.Error(t, r.SetBaseCurrency("XYZ"))
	assert.Equal(t, "EUR", r.BaseCurrency())
}

func TestTokenRegistry_UnpricedAndUnknown(t *testing.T) {
	r := newTestRegistry(t)

	md, ok := r.Token(slugPriceless)
	require.True(t, ok)
	assert.False(t, md.HasPrice)
	assert.True(t, md.IsPriceless)

	_, ok = r.Token("nope")
	assert.False(t, ok)
}

func TestTokenRegistry_RejectsBadInput(t *testing.T) {
	_, err := NewTokenRegistry(time.Minute, "GBP", nil, logger.NewNop())
	assert.Error(t, err)

	_, err = NewTokenRegistry(time.Minute, "USD", map[string]float64{"EUR": 0}, logger.NewNop())
	assert.Error(t, err)

	r := newTestRegistry(t)
	assert.Error(t, r.UpsertTokens([]entity.TokenMetadata{{Symbol: "NOSLUG"}}))
	assert.Equal(t, 1, r.SetPrices([]entity.TokenQuote{{Slug: slugTON, PriceUSD: -1}, {Slug: slugUSDT, PriceUSD: 1}}))
	md, _ := r.Token(slugTON)
	assert.Equal(t, 2.0, md.PriceUSD)
}

func TestTokenRegistry_UpsertKeepsCachedPrice(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.UpsertTokens([]entity.TokenMetadata{
		{Slug: slugTON, Symbol: "TON", Chain: "ton", Decimals: 9, HasPrice: true, Price: 99},
	}))
	md, ok := r.Token(slugTON)
	require.True(t, ok)
	assert.Equal(t, 2.0, md.Price)
	assert.Len(t, r.Tokens(), 6)
}

func TestTokenRegistry_SupportsCurrency(t *testing.T) {
	r := newTestRegistry(t)
	assert.True(t, r.SupportsCurrency("usd"))
	assert.True(t, r.SupportsCurrency("EUR"))
	assert.False(t, r.SupportsCurrency("JPY"))
}
