package service

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/logger"
)

func newTestLedger() *ledger {
	return newLedger([]entity.TokenSlug{slugStaked, "mycoin-staked"}, logger.NewNop())
}

func setStaked(amount int64) overlayFunc {
	return func(_ entity.AccountID, balances map[entity.TokenSlug]*big.Int) {
		balances[slugStaked] = big.NewInt(amount)
	}
}

func TestLedger_MergeAndReplace(t *testing.T) {
	l := newTestLedger()

	changed := l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(5)}, false, nil)
	assert.True(t, changed)
	changed = l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugUSDT: big.NewInt(7)}, false, nil)
	assert.True(t, changed)

	got := l.Balances(testAccount)
	assert.Equal(t, int64(5), got[slugTON].Int64())
	assert.Equal(t, int64(7), got[slugUSDT].Int64())

	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTrx: big.NewInt(1)}, true, nil)
	got = l.Balances(testAccount)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(1), got[slugTrx].Int64())

	assert.False(t, l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTrx: big.NewInt(1)}, false, nil))
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l := newTestLedger()
	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(5)}, false, nil)

	got := l.Balances(testAccount)
	got[slugTON].SetInt64(1000)
	got[slugUSDT] = big.NewInt(1)

	again := l.Balances(testAccount)
	assert.Equal(t, int64(5), again[slugTON].Int64())
	assert.NotContains(t, again, slugUSDT)
}

func TestLedger_StakedSlugPruning(t *testing.T) {
	l := newTestLedger()

	l.Apply(testAccount, nil, false, setStaked(0))
	_, ok := l.Balances(testAccount)[slugStaked]
	assert.False(t, ok, "zero staked slug must be absent")

	l.Apply(testAccount, nil, false, setStaked(42))
	require.Contains(t, l.Balances(testAccount), slugStaked)
	assert.Equal(t, int64(42), l.Balances(testAccount)[slugStaked].Int64())

	l.Apply(testAccount, nil, false, setStaked(0))
	assert.NotContains(t, l.Balances(testAccount), slugStaked)
	assert.NotContains(t, l.Balances(testAccount), entity.TokenSlug("mycoin-staked"))
}

func TestLedger_PlainZeroBalanceIsKept(t *testing.T) {
	l := newTestLedger()
	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugUSDT: big.NewInt(0)}, false, nil)
	require.Contains(t, l.Balances(testAccount), slugUSDT)
}

func TestLedger_RejectsNegativeAmounts(t *testing.T) {
	l := newTestLedger()
	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(5)}, false, nil)
	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(-1), slugUSDT: big.NewInt(-3)}, false, nil)

	got := l.Balances(testAccount)
	assert.Equal(t, int64(5), got[slugTON].Int64())
	assert.NotContains(t, got, slugUSDT)
}

func TestLedger_RemoveAndClean(t *testing.T) {
	l := newTestLedger()
	l.Apply(testAccount, map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(5)}, false, nil)
	l.Apply("1-mainnet", map[entity.TokenSlug]*big.Int{slugTON: big.NewInt(5)}, false, nil)
	assert.ElementsMatch(t, []entity.AccountID{testAccount, "1-mainnet"}, l.Accounts())

	l.Remove(testAccount)
	l.Remove(testAccount)
	assert.False(t, l.Has(testAccount))
	assert.Empty(t, l.Balances(testAccount))

	l.Clean()
	assert.Empty(t, l.Accounts())
}

func TestReconcile(t *testing.T) {
	stakedSlugs := []entity.TokenSlug{slugStaked, "mycoin-staked"}

	t.Run("unknown staking keeps raw values", func(t *testing.T) {
		balances := map[entity.TokenSlug]*big.Int{slugStaked: big.NewInt(9)}
		Reconcile(balances, nil, stakedSlugs)
		assert.Equal(t, int64(9), balances[slugStaked].Int64())
	})

	t.Run("state overrides raw with full balance", func(t *testing.T) {
		balances := map[entity.TokenSlug]*big.Int{slugStaked: big.NewInt(9)}
		Reconcile(balances, &entity.AccountStakingData{States: []entity.StakingState{{
			Slug:             slugStaked,
			Balance:          big.NewInt(100),
			UnclaimedRewards: big.NewInt(5),
		}}}, stakedSlugs)
		assert.Equal(t, int64(105), balances[slugStaked].Int64())
		assert.Zero(t, balances["mycoin-staked"].Sign())
	})

	t.Run("known staking without state zeroes the slug", func(t *testing.T) {
		balances := map[entity.TokenSlug]*big.Int{slugStaked: big.NewInt(9)}
		Reconcile(balances, &entity.AccountStakingData{}, stakedSlugs)
		assert.Zero(t, balances[slugStaked].Sign())
	})
}
