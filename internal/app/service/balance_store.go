package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"balance_engine/internal/app/port"
	"balance_engine/internal/config"
	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/coalesce"
	"balance_engine/internal/pkg/metrics"
	"balance_engine/internal/pkg/serial"
)

// BalanceStoreConfig tunes a BalanceStore.
type BalanceStoreConfig struct {
	Filter             FilterConfig
	StakedAliases      map[entity.TokenSlug]entity.TokenSlug
	SaveDebounce       time.Duration
	RecomputeInterval  time.Duration
	RestoreConcurrency int
}

// NewBalanceStoreConfig maps the engine section of the application config.
func NewBalanceStoreConfig(cfg config.EngineConfig) BalanceStoreConfig {
	aliases := make(map[entity.TokenSlug]entity.TokenSlug, len(cfg.StakedAliases))
	for staked, underlying := range cfg.StakedAliases {
		aliases[entity.TokenSlug(staked)] = entity.TokenSlug(underlying)
	}
	return BalanceStoreConfig{
		Filter: FilterConfig{
			NoCostThresholdUSD:     cfg.NoCostThresholdUSD,
			TinyTransferMaxCostUSD: cfg.TinyTransferMaxCostUSD,
			StakedSlugs:            toSlugs(cfg.StakedSlugs),
			CountedElsewhereSlugs:  toSlugs(cfg.CountedElsewhereSlugs),
			DefaultSlugs:           toSlugs(cfg.DefaultSlugs),
		},
		StakedAliases:      aliases,
		SaveDebounce:       cfg.SaveDebounce(),
		RecomputeInterval:  cfg.RecomputeInterval(),
		RestoreConcurrency: cfg.RestoreConcurrency,
	}
}

func toSlugs(in []string) []entity.TokenSlug {
	out := make([]entity.TokenSlug, 0, len(in))
	for _, s := range in {
		out = append(out, entity.TokenSlug(s))
	}
	return out
}

// Optional capabilities of the injected providers. Events carrying a new setting are
// applied through them on the queue, between recomputes.
type (
	baseCurrencySetter interface {
		SetBaseCurrency(currency string) error
	}
	hideNoCostSetter interface {
		SetHideNoCostTokens(hide bool)
	}
	policyRemover interface {
		Remove(id entity.AccountID)
	}
)

// BalanceStore keeps per-account balances, derives their valuation and publishes changes.
//
// Every mutation runs on one serial queue. Read methods return snapshots and never wait
// for queued work. Lock order is ledger, then aggregate cache; the two are never nested.
type BalanceStore struct {
	cfg      BalanceStoreConfig
	tokens   port.TokenMetadataProvider
	accounts port.AccountDirectory
	policies port.PolicyProvider
	logger   port.Logger

	queue       *serial.Queue
	ledger      *ledger
	staking     *StakingBook
	cache       *aggregateCache
	persistence *PersistenceBridge
	notifier    *Notifier

	throttleMu sync.Mutex
	throttles  map[entity.AccountID]*coalesce.Throttle
	all        *coalesce.Throttle

	recomputes atomic.Int64
	closeOnce  sync.Once
}

var _ port.BalanceService = (*BalanceStore)(nil)

// NewBalanceStore wires a BalanceStore and starts its serial queue.
func NewBalanceStore(
	tokens port.TokenMetadataProvider,
	accounts port.AccountDirectory,
	policies port.PolicyProvider,
	store port.BlobStore,
	l port.Logger,
	cfg BalanceStoreConfig,
) *BalanceStore {
	s := &BalanceStore{
		cfg:       cfg,
		tokens:    tokens,
		accounts:  accounts,
		policies:  policies,
		logger:    l.With("component", "balance_store"),
		queue:     serial.New(),
		ledger:    newLedger(cfg.Filter.StakedSlugs, l),
		staking:   NewStakingBook(),
		cache:     newAggregateCache(),
		notifier:  NewNotifier(),
		throttles: make(map[entity.AccountID]*coalesce.Throttle),
	}
	s.persistence = NewPersistenceBridge(store, s.ledger, cfg.SaveDebounce, cfg.RestoreConcurrency, l)
	s.all = coalesce.NewThrottle(cfg.RecomputeInterval, func() { s.submit(s.recomputeAll) })
	s.logger.Info("BalanceStore initialized",
		"stakedSlugs", cfg.Filter.StakedSlugs,
		"saveDebounce", cfg.SaveDebounce,
		"recomputeInterval", cfg.RecomputeInterval)
	return s
}

// Handle implements port.EventHandler. It enqueues and returns immediately.
func (s *BalanceStore) Handle(event entity.Event) {
	switch e := event.(type) {
	case entity.BalanceUpdate:
		balances := copyBalances(e.Balances)
		s.submit(func() { s.applyUpdate(e.AccountID, balances, e.RemoveOtherTokens) })
	case entity.StakingStateUpdate:
		s.submit(func() {
			s.staking.Put(e.Data)
			s.applyUpdate(e.Data.AccountID, nil, false)
		})
	case entity.AccountDeleted:
		s.submit(func() { s.removeAccount(e.AccountID) })
	case entity.BaseCurrencyChanged:
		s.submit(func() {
			if setter, ok := s.tokens.(baseCurrencySetter); ok && e.Currency != "" {
				if err := setter.SetBaseCurrency(e.Currency); err != nil {
					s.logger.Warn("Ignoring base currency change", "currency", e.Currency, "error", err)
					return
				}
			}
			s.all.Trigger()
		})
	case entity.HideNoCostTokensChanged:
		s.submit(func() {
			if setter, ok := s.policies.(hideNoCostSetter); ok {
				setter.SetHideNoCostTokens(e.Hide)
			}
			s.all.Trigger()
		})
	case entity.TokenMetadataChanged, entity.AssetPolicyChanged:
		s.all.Trigger()
	default:
		s.logger.Warn("Unhandled event", "type", fmt.Sprintf("%T", event))
	}
}

func (s *BalanceStore) submit(job func()) {
	if err := s.queue.Submit(job); err != nil {
		s.logger.Debug("Dropping work submitted after close", "error", err)
	}
}

// applyUpdate runs on the queue.
func (s *BalanceStore) applyUpdate(accountID entity.AccountID, updates map[entity.TokenSlug]*big.Int, removeOthers bool) {
	s.ledger.Apply(accountID, updates, removeOthers, s.overlay)
	s.persistence.MarkDirty(accountID)
	s.throttleFor(accountID).Trigger()
}

func (s *BalanceStore) overlay(accountID entity.AccountID, balances map[entity.TokenSlug]*big.Int) {
	staking, _ := s.staking.Get(accountID)
	Reconcile(balances, staking, s.cfg.Filter.StakedSlugs)
}

func (s *BalanceStore) throttleFor(accountID entity.AccountID) *coalesce.Throttle {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()
	t, ok := s.throttles[accountID]
	if !ok {
		t = coalesce.NewThrottle(s.cfg.RecomputeInterval, func() {
			s.submit(func() { s.recompute(accountID) })
		})
		s.throttles[accountID] = t
	}
	return t
}

func (s *BalanceStore) dropThrottle(accountID entity.AccountID) {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()
	if t, ok := s.throttles[accountID]; ok {
		t.Cancel()
		delete(s.throttles, accountID)
	}
}

// removeAccount runs on the queue. The persisted key is deleted by the next write cycle.
func (s *BalanceStore) removeAccount(accountID entity.AccountID) {
	s.dropThrottle(accountID)
	s.ledger.Remove(accountID)
	s.staking.Remove(accountID)
	s.cache.Remove(accountID)
	if remover, ok := s.policies.(policyRemover); ok {
		remover.Remove(accountID)
	}
	s.persistence.MarkDirty(accountID)
	s.logger.Info("Account removed", "accountId", accountID)
}

// recomputeAll re-applies an empty update to every account so the staking overlay
// runs again, then recomputes each of them.
func (s *BalanceStore) recomputeAll() {
	for _, accountID := range s.ledger.Accounts() {
		if s.ledger.Apply(accountID, nil, false, s.overlay) {
			s.persistence.MarkDirty(accountID)
		}
		s.recompute(accountID)
	}
}

// recompute runs on the queue.
func (s *BalanceStore) recompute(accountID entity.AccountID) {
	raw, ok := s.ledger.Snapshot(accountID)
	if !ok {
		return
	}
	start := time.Now()
	s.recomputes.Add(1)

	staking, _ := s.staking.Get(accountID)
	policy := s.policies.Policy(accountID)
	account, known := s.accounts.Account(accountID)
	valuation := NewValuation(s.tokens, s.aliases(staking))

	visible := Filter(raw, staking, policy, account, known, valuation, s.cfg.Filter)
	totals, unresolved := valuation.Totals(visible.Tokens, visible.Staked)
	if len(unresolved) > 0 {
		metrics.UnresolvedTokens.Add(float64(len(unresolved)))
		s.logger.Warn("Not all tokens found", "accountId", accountID, "slugs", unresolved)
	}

	currency := s.tokens.BaseCurrency()
	data := entity.AccountBalanceData{
		WalletTokens:          visible.Tokens,
		WalletStaked:          visible.Staked,
		TotalBalance:          entity.BaseCurrencyAmount{Value: totals.Today, Currency: currency},
		TotalBalanceYesterday: entity.BaseCurrencyAmount{Value: totals.Yesterday, Currency: currency},
		TotalBalanceUSD:       totals.USD,
		PercentChange:         totals.PercentChange,
	}

	changed, first := s.cache.CompareAndSwap(accountID, data)
	metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	if !changed {
		metrics.Recomputes.WithLabelValues("unchanged").Inc()
		return
	}
	metrics.Recomputes.WithLabelValues("changed").Inc()
	s.notifier.Publish(accountID, first)
	s.logger.Debug("Balance changed", "accountId", accountID, "isFirstUpdate", first, "total", totals.Today)
}

func (s *BalanceStore) aliases(staking *entity.AccountStakingData) map[entity.TokenSlug]entity.TokenSlug {
	if staking == nil || len(staking.States) == 0 {
		return s.cfg.StakedAliases
	}
	aliases := make(map[entity.TokenSlug]entity.TokenSlug, len(s.cfg.StakedAliases)+len(staking.States))
	for staked, underlying := range s.cfg.StakedAliases {
		aliases[staked] = underlying
	}
	for _, state := range staking.States {
		if state.TokenSlug != "" {
			aliases[state.Slug] = state.TokenSlug
		}
	}
	return aliases
}

// RawBalances implements port.BalanceReader.
func (s *BalanceStore) RawBalances(accountID entity.AccountID) map[entity.TokenSlug]*big.Int {
	return s.ledger.Balances(accountID)
}

// AccountBalanceData implements port.BalanceReader.
func (s *BalanceStore) AccountBalanceData(accountID entity.AccountID) (entity.AccountBalanceData, bool) {
	return s.cache.Get(accountID)
}

// TotalBalance implements port.BalanceReader. Accounts without an aggregate add nothing.
func (s *BalanceStore) TotalBalance(accountIDs []entity.AccountID) entity.BaseCurrencyAmount {
	total := entity.BaseCurrencyAmount{Currency: s.tokens.BaseCurrency()}
	for _, accountID := range accountIDs {
		if data, ok := s.cache.Get(accountID); ok {
			total.Value += data.TotalBalance.Value
		}
	}
	return total
}

// TotalBalanceOfType implements port.BalanceReader.
func (s *BalanceStore) TotalBalanceOfType(accountType *string) entity.BaseCurrencyAmount {
	var ids []entity.AccountID
	for _, account := range s.accounts.Accounts() {
		if account.Network != entity.NetworkMainnet {
			continue
		}
		if accountType != nil && account.Type != *accountType {
			continue
		}
		ids = append(ids, account.ID)
	}
	return s.TotalBalance(ids)
}

// Subscribe implements port.BalanceNotifier.
func (s *BalanceStore) Subscribe(buffer int) (<-chan entity.BalanceChanged, func()) {
	return s.notifier.Subscribe(buffer)
}

// LoadFromCache restores persisted ledgers of accountIDs and recomputes them.
// Accounts restored with data do not report their next change as a first update.
// It returns once the restored state is visible to readers, or when ctx ends.
func (s *BalanceStore) LoadFromCache(ctx context.Context, accountIDs []entity.AccountID) {
	restored := s.persistence.Load(ctx, accountIDs)
	s.logger.Info("Restored persisted balances", "requested", len(accountIDs), "restored", len(restored))
	s.submit(func() {
		for accountID, balances := range restored {
			s.cache.MarkRestored(accountID)
			s.ledger.Apply(accountID, balances, false, s.overlay)
			s.recompute(accountID)
		}
	})
	if err := s.queue.Sync(ctx); err != nil {
		s.logger.Warn("LoadFromCache returned before restore completed", "error", err)
	}
}

// Clean wipes every in-memory table and drops pending writes. Persisted data is kept.
func (s *BalanceStore) Clean() {
	s.submit(func() {
		s.throttleMu.Lock()
		for accountID, t := range s.throttles {
			t.Cancel()
			delete(s.throttles, accountID)
		}
		s.throttleMu.Unlock()
		s.all.Cancel()
		s.persistence.Discard()
		s.ledger.Clean()
		s.staking.Clean()
		s.cache.Clean()
		s.logger.Info("BalanceStore cleaned")
	})
}

// Sync waits until all work queued before the call has run.
func (s *BalanceStore) Sync(ctx context.Context) error {
	return s.queue.Sync(ctx)
}

// Close drains the queue, flushes pending writes and closes subscriptions.
func (s *BalanceStore) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.all.Cancel()
		s.throttleMu.Lock()
		for _, t := range s.throttles {
			t.Cancel()
		}
		s.throttleMu.Unlock()
		s.queue.Close()
		s.persistence.Flush(ctx)
		s.notifier.Close()
		s.logger.Info("BalanceStore closed")
	})
}
