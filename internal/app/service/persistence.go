package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/errgroup"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/coalesce"
	"balance_engine/internal/pkg/metrics"
	"balance_engine/internal/pkg/utils"
)

var blobJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// BalancesKey is the storage key of an account's persisted ledger table.
func BalancesKey(accountID entity.AccountID) string {
	return "byAccountId." + string(accountID) + ".balances.bySlug"
}

type ledgerSnapshotter interface {
	Has(accountID entity.AccountID) bool
	Balances(accountID entity.AccountID) map[entity.TokenSlug]*big.Int
}

// PersistenceBridge writes dirty ledger tables to the blob store after a quiet period
// and restores them on start. It never reports failures to its callers.
type PersistenceBridge struct {
	store       port.BlobStore
	ledger      ledgerSnapshotter
	logger      port.Logger
	concurrency int

	mu      sync.Mutex
	pending map[entity.AccountID]struct{}

	flushMu   sync.Mutex
	debouncer *coalesce.Debouncer
}

// NewPersistenceBridge creates a bridge writing after debounce of inactivity.
func NewPersistenceBridge(
	store port.BlobStore,
	ledger ledgerSnapshotter,
	debounce time.Duration,
	concurrency int,
	logger port.Logger,
) *PersistenceBridge {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &PersistenceBridge{
		store:       store,
		ledger:      ledger,
		logger:      logger,
		concurrency: concurrency,
		pending:     make(map[entity.AccountID]struct{}),
	}
	p.debouncer = coalesce.NewDebouncer(debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		p.flush(ctx)
	})
	return p
}

// MarkDirty queues accountID for the next write and re-arms the timer.
// Accounts missing from the ledger at write time get their key deleted.
func (p *PersistenceBridge) MarkDirty(accountID entity.AccountID) {
	p.mu.Lock()
	p.pending[accountID] = struct{}{}
	p.mu.Unlock()
	p.debouncer.Trigger()
}

// Pending returns the number of accounts waiting to be written.
func (p *PersistenceBridge) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush writes the pending set right away.
func (p *PersistenceBridge) Flush(ctx context.Context) {
	p.debouncer.Cancel()
	p.flush(ctx)
}

// Discard drops every pending write.
func (p *PersistenceBridge) Discard() {
	p.debouncer.Cancel()
	p.mu.Lock()
	p.pending = make(map[entity.AccountID]struct{})
	p.mu.Unlock()
}

func (p *PersistenceBridge) flush(ctx context.Context) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[entity.AccountID]struct{})
	p.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	var failed []entity.AccountID
	for accountID := range batch {
		if err := p.write(ctx, accountID); err != nil {
			metrics.PersistWrites.WithLabelValues("error").Inc()
			p.logger.Warn("Failed to persist balances, will retry", "accountId", accountID, "error", err)
			failed = append(failed, accountID)
			continue
		}
		metrics.PersistWrites.WithLabelValues("ok").Inc()
	}
	if len(failed) == 0 {
		return
	}
	p.mu.Lock()
	for _, accountID := range failed {
		p.pending[accountID] = struct{}{}
	}
	p.mu.Unlock()
	p.debouncer.Trigger()
}

func (p *PersistenceBridge) write(ctx context.Context, accountID entity.AccountID) error {
	key := BalancesKey(accountID)
	if !p.ledger.Has(accountID) {
		if err := p.store.Delete(ctx, key); err != nil && !errors.Is(err, port.ErrNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	}
	blob, err := EncodeBalances(p.ledger.Balances(accountID))
	if err != nil {
		return err
	}
	if err := p.store.Set(ctx, key, blob); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Load reads the persisted tables of accountIDs. Accounts without data, or whose
// read fails, are absent from the result.
func (p *PersistenceBridge) Load(
	ctx context.Context,
	accountIDs []entity.AccountID,
) map[entity.AccountID]map[entity.TokenSlug]*big.Int {
	var mu sync.Mutex
	restored := make(map[entity.AccountID]map[entity.TokenSlug]*big.Int, len(accountIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, accountID := range accountIDs {
		g.Go(func() error {
			blob, err := p.store.Get(gctx, BalancesKey(accountID))
			if errors.Is(err, port.ErrNotFound) {
				return nil
			}
			if err != nil {
				p.logger.Warn("Failed to read persisted balances", "accountId", accountID, "error", err)
				return nil
			}
			balances, skipped, err := DecodeBalances(blob)
			if err != nil {
				p.logger.Warn("Discarding malformed persisted balances", "accountId", accountID, "error", err)
				return nil
			}
			if len(skipped) > 0 {
				p.logger.Warn("Skipped malformed persisted entries", "accountId", accountID, "slugs", skipped)
			}
			if len(balances) == 0 {
				return nil
			}
			mu.Lock()
			restored[accountID] = balances
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return restored
}

// EncodeBalances renders a ledger table as a JSON object of "bigint:<n>" strings.
func EncodeBalances(balances map[entity.TokenSlug]*big.Int) ([]byte, error) {
	items := make(map[string]string, len(balances))
	for slug, amount := range balances {
		items[string(slug)] = utils.EncodeAmount(amount)
	}
	blob, err := blobJSON.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode balances: %w", err)
	}
	return blob, nil
}

// DecodeBalances parses a persisted table. Entries that do not parse as non-negative
// integers are skipped and reported by slug.
func DecodeBalances(blob []byte) (map[entity.TokenSlug]*big.Int, []entity.TokenSlug, error) {
	var items map[string]any
	if err := blobJSON.Unmarshal(blob, &items); err != nil {
		return nil, nil, fmt.Errorf("decode balances: %w", err)
	}
	balances := make(map[entity.TokenSlug]*big.Int, len(items))
	var skipped []entity.TokenSlug
	for slug, raw := range items {
		var text string
		switch v := raw.(type) {
		case string:
			text = v
		case json.Number:
			text = v.String()
		default:
			skipped = append(skipped, entity.TokenSlug(slug))
			continue
		}
		amount, err := utils.ParseAmount(text)
		if err != nil {
			skipped = append(skipped, entity.TokenSlug(slug))
			continue
		}
		balances[entity.TokenSlug(slug)] = amount
	}
	return balances, skipped, nil
}
