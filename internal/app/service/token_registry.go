package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
)

const usdCurrency = "USD"

type usdPrice struct {
	today     float64
	yesterday float64
}

// TokenRegistry implements port.TokenMetadataProvider.
// Static metadata lives in a map, prices in a TTL cache so stale quotes expire.
type TokenRegistry struct {
	mu       sync.RWMutex
	tokens   map[entity.TokenSlug]entity.TokenMetadata
	rates    map[string]float64
	currency string

	prices *cache.Cache
	logger port.Logger

	onChangeMu sync.RWMutex
	onChange   func()
}

// NewTokenRegistry creates a registry. rates are units of currency per 1 USD;
// USD is always present with rate 1.
func NewTokenRegistry(priceTTL time.Duration, baseCurrency string, rates map[string]float64, l port.Logger) (*TokenRegistry, error) {
	r := &TokenRegistry{
		tokens: make(map[entity.TokenSlug]entity.TokenMetadata),
		rates:  map[string]float64{usdCurrency: 1},
		prices: cache.New(priceTTL, priceTTL/2+time.Second),
		logger: l,
	}
	for currency, rate := range rates {
		if err := r.SetRate(currency, rate); err != nil {
			return nil, err
		}
	}
	r.currency = usdCurrency
	if err := r.SetBaseCurrency(baseCurrency); err != nil {
		return nil, err
	}
	r.prices.OnEvicted(func(slug string, _ interface{}) {
		r.logger.Debug("Token price expired", "slug", slug)
		r.notify()
	})
	l.Info("TokenRegistry initialized", "baseCurrency", r.currency, "priceTTL", priceTTL)
	return r, nil
}

// OnChange registers fn to run when cached prices expire.
func (r *TokenRegistry) OnChange(fn func()) {
	r.onChangeMu.Lock()
	defer r.onChangeMu.Unlock()
	r.onChange = fn
}

func (r *TokenRegistry) notify() {
	r.onChangeMu.RLock()
	fn := r.onChange
	r.onChangeMu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Token implements port.TokenMetadataProvider.
func (r *TokenRegistry) Token(slug entity.TokenSlug) (entity.TokenMetadata, bool) {
	r.mu.RLock()
	md, ok := r.tokens[slug]
	rate := r.rates[r.currency]
	r.mu.RUnlock()
	if !ok {
		return entity.TokenMetadata{}, false
	}
	if cached, found := r.prices.Get(string(slug)); found {
		p := cached.(usdPrice)
		md.HasPrice = true
		md.PriceUSD = p.today
		md.Price = p.today * rate
		md.Price24h = p.yesterday * rate
	}
	return md, true
}

// BaseCurrency implements port.TokenMetadataProvider.
func (r *TokenRegistry) BaseCurrency() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currency
}

// Tokens returns every known token, without prices.
func (r *TokenRegistry) Tokens() []entity.TokenMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entity.TokenMetadata, 0, len(r.tokens))
	for _, md := range r.tokens {
		out = append(out, md)
	}
	return out
}

// UpsertTokens adds or replaces static metadata.
func (r *TokenRegistry) UpsertTokens(tokens []entity.TokenMetadata) error {
	for _, md := range tokens {
		if md.Slug == "" {
			return fmt.Errorf("token metadata without slug (symbol %q)", md.Symbol)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, md := range tokens {
		md.HasPrice, md.Price, md.Price24h, md.PriceUSD = false, 0, 0, 0
		r.tokens[md.Slug] = md
	}
	r.logger.Debug("Token metadata upserted", "count", len(tokens))
	return nil
}

// SetPrices caches USD quotes. Quotes with a negative price are skipped.
func (r *TokenRegistry) SetPrices(quotes []entity.TokenQuote) int {
	stored := 0
	for _, q := range quotes {
		if q.PriceUSD < 0 || q.PriceUSD24h < 0 {
			r.logger.Debug("Attempted to cache negative price, skipping.", "slug", q.Slug, "price", q.PriceUSD)
			continue
		}
		r.prices.SetDefault(string(q.Slug), usdPrice{today: q.PriceUSD, yesterday: q.PriceUSD24h})
		stored++
	}
	return stored
}

// SetRate sets how many units of currency one USD buys.
func (r *TokenRegistry) SetRate(currency string, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid rate %v for %s", rate, currency)
	}
	currency = strings.ToUpper(currency)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rates[currency] = rate
	return nil
}

// SetBaseCurrency switches the currency prices are reported in.
func (r *TokenRegistry) SetBaseCurrency(currency string) error {
	currency = strings.ToUpper(currency)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rates[currency]; !ok {
		return fmt.Errorf("no rate known for base currency %q", currency)
	}
	r.currency = currency
	return nil
}

// SupportsCurrency reports whether a rate is known for currency.
func (r *TokenRegistry) SupportsCurrency(currency string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rates[strings.ToUpper(currency)]
	return ok
}
