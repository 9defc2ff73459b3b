package service

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
)

func filterFixture(t *testing.T) (*Valuation, entity.Account) {
	t.Helper()
	v := NewValuation(newTestRegistry(t), map[entity.TokenSlug]entity.TokenSlug{slugStaked: slugTON})
	return v, tonAccount(testAccount, entity.NetworkMainnet, "mnemonic")
}

func raw(amounts map[entity.TokenSlug]int64) map[entity.TokenSlug]*big.Int {
	out := make(map[entity.TokenSlug]*big.Int, len(amounts))
	for slug, amount := range amounts {
		out[slug] = big.NewInt(amount)
	}
	return out
}

func TestFilter_SortsByValueThenSlug(t *testing.T) {
	v, account := filterFixture(t)
	res := Filter(raw(map[entity.TokenSlug]int64{
		slugUSDT:      3_000_000,     // 3
		slugTON:       5_000_000_000, // 10
		slugPriceless: 4,             // no price
		slugJunk:      1,
	}), nil, entity.AssetPolicy{}, account, true, v, testFilterConfig())

	assert.Equal(t, []entity.TokenSlug{slugTON, slugUSDT, slugJunk, slugPriceless}, slugsOf(res.Tokens))
}

func TestFilter_DropsZeroAndCountedElsewhere(t *testing.T) {
	v, account := filterFixture(t)
	res := Filter(raw(map[entity.TokenSlug]int64{
		slugTON:    5_000_000_000,
		slugUSDT:   0,
		slugTsUSDe: 8_000_000,
		slugStaked: 1_000_000_000,
	}), nil, entity.AssetPolicy{}, account, true, v, testFilterConfig())

	assert.Equal(t, []entity.TokenSlug{slugTON}, slugsOf(res.Tokens))
	require.Len(t, res.Staked, 1)
	assert.Equal(t, slugStaked, res.Staked[0].Slug)
}

func TestFilter_HideNoCostKeepsPriceless(t *testing.T) {
	v, account := filterFixture(t)
	policy := entity.AssetPolicy{HideNoCostTokens: true}
	res := Filter(raw(map[entity.TokenSlug]int64{
		slugTON:       5_000_000_000,
		slugJunk:      1_000_000_000,
		slugPriceless: 1,
		"unknown":     10,
	}), nil, policy, account, true, v, testFilterConfig())

	assert.ElementsMatch(t, []entity.TokenSlug{slugTON, slugPriceless}, slugsOf(res.Tokens))
}

func TestFilter_ForcedSlugsRespectChainSupport(t *testing.T) {
	v, account := filterFixture(t)
	policy := entity.AssetPolicy{
		AlwaysShown: []entity.TokenSlug{slugUSDT, slugTrx},
		Imported:    []entity.TokenSlug{slugJunk, "unknown"},
	}
	res := Filter(raw(map[entity.TokenSlug]int64{slugTON: 5_000_000_000}), nil, policy, account, true, v, testFilterConfig())

	assert.Equal(t, []entity.TokenSlug{slugTON, slugJunk, slugUSDT}, slugsOf(res.Tokens))
	for _, b := range res.Tokens[1:] {
		assert.Zero(t, b.Amount.Sign())
	}
}

func TestFilter_DefaultSlugsForTinyWallets(t *testing.T) {
	v, account := filterFixture(t)

	empty := Filter(map[entity.TokenSlug]*big.Int{}, nil, entity.AssetPolicy{}, account, true, v, testFilterConfig())
	assert.Equal(t, []entity.TokenSlug{slugUSDT, slugTON}, slugsOf(empty.Tokens), "trx is on an unsupported chain")

	dust := Filter(raw(map[entity.TokenSlug]int64{slugUSDT: 5_000}), nil, entity.AssetPolicy{}, account, true, v, testFilterConfig())
	assert.Equal(t, []entity.TokenSlug{slugUSDT, slugTON}, slugsOf(dust.Tokens))

	funded := Filter(raw(map[entity.TokenSlug]int64{slugUSDT: 5_000_000}), nil, entity.AssetPolicy{}, account, true, v, testFilterConfig())
	assert.Equal(t, []entity.TokenSlug{slugUSDT}, slugsOf(funded.Tokens))

	unknownAccount := Filter(map[entity.TokenSlug]*big.Int{}, nil, entity.AssetPolicy{}, entity.Account{}, false, v, testFilterConfig())
	assert.Empty(t, unknownAccount.Tokens)
}

func TestFilter_HiddenWinsOverForcedShow(t *testing.T) {
	v, account := filterFixture(t)
	policy := entity.AssetPolicy{
		AlwaysShown:  []entity.TokenSlug{slugUSDT, slugJunk},
		Imported:     []entity.TokenSlug{slugJunk},
		AlwaysHidden: []entity.TokenSlug{slugUSDT, slugTON},
		Deleted:      []entity.TokenSlug{slugJunk},
	}
	res := Filter(raw(map[entity.TokenSlug]int64{slugTON: 5_000_000_000, slugUSDT: 1_000_000}), nil, policy, account, true, v, testFilterConfig())

	for _, slug := range []entity.TokenSlug{slugTON, slugUSDT, slugJunk} {
		assert.NotContains(t, slugsOf(res.Tokens), slug)
	}
}

func TestFilter_StakedList(t *testing.T) {
	v, account := filterFixture(t)
	staking := &entity.AccountStakingData{
		AccountID: testAccount,
		States: []entity.StakingState{
			{Slug: slugStaked, TokenSlug: slugTON, Balance: big.NewInt(1_000_000_000)},
			{Slug: "ton-stton", TokenSlug: slugTON, Balance: big.NewInt(2), UnclaimedRewards: big.NewInt(1)},
			{Slug: "ton-empty", TokenSlug: slugTON, Balance: big.NewInt(0)},
		},
	}
	res := Filter(raw(map[entity.TokenSlug]int64{slugStaked: 1_000_000_000}), staking, entity.AssetPolicy{}, account, true, v, testFilterConfig())

	require.Len(t, res.Staked, 2)
	assert.Equal(t, slugStaked, res.Staked[0].Slug)
	assert.Equal(t, entity.TokenSlug("ton-stton"), res.Staked[1].Slug)
	assert.Equal(t, int64(3), res.Staked[1].Amount.Int64())
	for _, b := range res.Staked {
		assert.True(t, b.IsStaking)
	}
}
