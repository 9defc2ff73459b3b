package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/infrastructure/storage/memstore"
	"balance_engine/internal/pkg/logger"
)

const (
	testAccount   entity.AccountID = "0-mainnet"
	slugTON       entity.TokenSlug = "toncoin"
	slugUSDT      entity.TokenSlug = "ton-usdt"
	slugJunk      entity.TokenSlug = "ton-junk"
	slugTrx       entity.TokenSlug = "trx"
	slugStaked    entity.TokenSlug = "ton-staked"
	slugTsUSDe    entity.TokenSlug = "ton-tsusde"
	slugPriceless entity.TokenSlug = "ton-nft-like"
)

// memBlobStore wraps memstore with a Set failure switch and a write counter.
type memBlobStore struct {
	*memstore.Store

	mu      sync.Mutex
	failSet bool
	sets    int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{Store: memstore.New()}
}

func (m *memBlobStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	if m.failSet {
		m.mu.Unlock()
		return errors.New("disk full")
	}
	m.sets++
	m.mu.Unlock()
	return m.Store.Set(ctx, key, value)
}

func (m *memBlobStore) has(key string) bool {
	_, err := m.Get(context.Background(), key)
	return err == nil
}

func (m *memBlobStore) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

func (m *memBlobStore) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSet = fail
}

type fakeAccounts struct {
	byID map[entity.AccountID]entity.Account
}

func newFakeAccounts(accounts ...entity.Account) *fakeAccounts {
	f := &fakeAccounts{byID: make(map[entity.AccountID]entity.Account)}
	for _, a := range accounts {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) Account(id entity.AccountID) (entity.Account, bool) {
	a, ok := f.byID[id]
	return a, ok
}

func (f *fakeAccounts) Accounts() []entity.Account {
	out := make([]entity.Account, 0, len(f.byID))
	for _, a := range f.byID {
		out = append(out, a)
	}
	return out
}

func tonAccount(id entity.AccountID, network entity.Network, accountType string) entity.Account {
	return entity.Account{ID: id, Network: network, Type: accountType, Chains: []string{"ton"}}
}

func newTestRegistry(t *testing.T) *TokenRegistry {
	t.Helper()
	r, err := NewTokenRegistry(time.Hour, "USD", map[string]float64{"EUR": 0.5}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.UpsertTokens([]entity.TokenMetadata{
		{Slug: slugTON, Symbol: "TON", Chain: "ton", Decimals: 9, IsNative: true},
		{Slug: slugUSDT, Symbol: "USDT", Chain: "ton", Decimals: 6},
		{Slug: slugJunk, Symbol: "JUNK", Chain: "ton", Decimals: 9},
		{Slug: slugTrx, Symbol: "TRX", Chain: "tron", Decimals: 6, IsNative: true},
		{Slug: slugTsUSDe, Symbol: "tsUSDe", Chain: "ton", Decimals: 6},
		{Slug: slugPriceless, Symbol: "PL", Chain: "ton", Decimals: 0, IsPriceless: true},
	}))
	r.SetPrices([]entity.TokenQuote{
		{Slug: slugTON, PriceUSD: 2.0, PriceUSD24h: 1.6},
		{Slug: slugUSDT, PriceUSD: 1.0, PriceUSD24h: 1.0},
		{Slug: slugJunk, PriceUSD: 0.000001, PriceUSD24h: 0.000001},
		{Slug: slugTrx, PriceUSD: 0.1, PriceUSD24h: 0.1},
		{Slug: slugTsUSDe, PriceUSD: 1.0, PriceUSD24h: 1.0},
	})
	return r
}

func testFilterConfig() FilterConfig {
	return FilterConfig{
		NoCostThresholdUSD:     0.01,
		TinyTransferMaxCostUSD: 0.01,
		StakedSlugs:            []entity.TokenSlug{slugStaked, "mycoin-staked"},
		CountedElsewhereSlugs:  []entity.TokenSlug{slugTsUSDe},
		DefaultSlugs:           []entity.TokenSlug{slugTON, slugUSDT, slugTrx},
	}
}

func testStoreConfig() BalanceStoreConfig {
	return BalanceStoreConfig{
		Filter:             testFilterConfig(),
		StakedAliases:      map[entity.TokenSlug]entity.TokenSlug{slugStaked: slugTON},
		SaveDebounce:       20 * time.Millisecond,
		RecomputeInterval:  100 * time.Millisecond,
		RestoreConcurrency: 4,
	}
}

type storeFixture struct {
	store    *BalanceStore
	blobs    *memBlobStore
	tokens   *TokenRegistry
	policies *PolicyStore
	accounts *fakeAccounts
}

func newStoreFixture(t *testing.T, blobs *memBlobStore) *storeFixture {
	t.Helper()
	if blobs == nil {
		blobs = newMemBlobStore()
	}
	f := &storeFixture{
		blobs:    blobs,
		tokens:   newTestRegistry(t),
		policies: NewPolicyStore(),
		accounts: newFakeAccounts(
			tonAccount(testAccount, entity.NetworkMainnet, "mnemonic"),
			tonAccount("1-mainnet", entity.NetworkMainnet, "view"),
			tonAccount("0-testnet", entity.NetworkTestnet, "mnemonic"),
		),
	}
	f.store = NewBalanceStore(f.tokens, f.accounts, f.policies, blobs, logger.NewNop(), testStoreConfig())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		f.store.Close(ctx)
	})
	return f
}

// settle waits until queued work, and the work it queued in turn, has run.
func (f *storeFixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.Sync(ctx))
	}
}

// awaitRecomputes waits for at least n recomputes, then settles.
func (f *storeFixture) awaitRecomputes(t *testing.T, n int64) {
	t.Helper()
	require.Eventually(t, func() bool { return f.store.recomputes.Load() >= n }, 2*time.Second, 5*time.Millisecond)
	f.settle(t)
}

func update(accountID entity.AccountID, balances map[entity.TokenSlug]int64) entity.BalanceUpdate {
	out := make(map[entity.TokenSlug]*big.Int, len(balances))
	for slug, amount := range balances {
		out[slug] = big.NewInt(amount)
	}
	return entity.BalanceUpdate{AccountID: accountID, Balances: out}
}

func receive(t *testing.T, ch <-chan entity.BalanceChanged) entity.BalanceChanged {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no balance changed notification")
		return entity.BalanceChanged{}
	}
}

func requireSilent(t *testing.T, ch <-chan entity.BalanceChanged) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected notification for %s", ev.AccountID)
	default:
	}
}

func slugsOf(balances []entity.TokenBalance) []entity.TokenSlug {
	out := make([]entity.TokenSlug, 0, len(balances))
	for _, b := range balances {
		out = append(out, b.Slug)
	}
	return out
}
