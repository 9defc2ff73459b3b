package service

import (
	"math/big"
	"sort"

	"balance_engine/internal/domain/entity"
)

// FilterConfig holds the product constants of the visibility filter.
type FilterConfig struct {
	NoCostThresholdUSD     float64
	TinyTransferMaxCostUSD float64
	StakedSlugs            []entity.TokenSlug
	CountedElsewhereSlugs  []entity.TokenSlug
	DefaultSlugs           []entity.TokenSlug
}

// FilterResult is the visible content of one account.
type FilterResult struct {
	Tokens []entity.TokenBalance
	Staked []entity.TokenBalance
}

// Filter decides which balances an account shows. It has no side effects.
//
// raw must already carry the staking overlay. account is the directory entry of the
// account, ok false when the directory does not know it; forced placeholders are then
// never inserted because chain support cannot be checked.
func Filter(
	raw map[entity.TokenSlug]*big.Int,
	staking *entity.AccountStakingData,
	policy entity.AssetPolicy,
	account entity.Account,
	accountKnown bool,
	v *Valuation,
	cfg FilterConfig,
) FilterResult {
	excluded := make(map[entity.TokenSlug]struct{}, len(cfg.StakedSlugs)+len(cfg.CountedElsewhereSlugs))
	for _, slug := range cfg.StakedSlugs {
		excluded[slug] = struct{}{}
	}
	for _, slug := range cfg.CountedElsewhereSlugs {
		excluded[slug] = struct{}{}
	}

	tokens := make([]entity.TokenBalance, 0, len(raw))
	present := make(map[entity.TokenSlug]struct{}, len(raw))
	var totalToday, totalUSD float64
	for slug, amount := range raw {
		if amount.Sign() <= 0 {
			continue
		}
		if _, skip := excluded[slug]; skip {
			continue
		}
		b := entity.NewTokenBalance(slug, amount, false)
		if value, ok := v.ValueToday(b); ok {
			totalToday += value
			usd, _ := v.ValueUSD(b)
			totalUSD += usd
		}
		tokens = append(tokens, b)
		present[slug] = struct{}{}
	}

	if policy.HideNoCostTokens {
		kept := tokens[:0]
		for _, b := range tokens {
			usd, _ := v.ValueUSD(b)
			md, _ := v.Metadata(b.Slug)
			if usd <= cfg.NoCostThresholdUSD && !md.IsPriceless {
				delete(present, b.Slug)
				continue
			}
			kept = append(kept, b)
		}
		tokens = kept
	}

	insert := func(slugs []entity.TokenSlug) {
		if !accountKnown {
			return
		}
		for _, slug := range slugs {
			if _, ok := present[slug]; ok {
				continue
			}
			md, ok := v.Metadata(slug)
			if !ok || !account.Supports(md.Chain) {
				continue
			}
			tokens = append(tokens, entity.NewTokenBalance(slug, nil, false))
			present[slug] = struct{}{}
		}
	}
	insert(policy.AlwaysShown)
	insert(policy.Imported)
	if totalToday == 0 || totalUSD < cfg.TinyTransferMaxCostUSD {
		insert(cfg.DefaultSlugs)
	}

	visible := tokens[:0]
	for _, b := range tokens {
		if policy.Hides(b.Slug) {
			continue
		}
		visible = append(visible, b)
	}
	tokens = visible
	sortBalances(tokens, v)

	return FilterResult{Tokens: tokens, Staked: stakedBalances(raw, staking, v, cfg.StakedSlugs)}
}

// stakedBalances lists positive synthetic staked slugs of the reconciled snapshot and
// any other staking positions the feed reported.
func stakedBalances(
	raw map[entity.TokenSlug]*big.Int,
	staking *entity.AccountStakingData,
	v *Valuation,
	stakedSlugs []entity.TokenSlug,
) []entity.TokenBalance {
	synthetic := make(map[entity.TokenSlug]struct{}, len(stakedSlugs))
	staked := make([]entity.TokenBalance, 0, len(stakedSlugs))
	for _, slug := range stakedSlugs {
		synthetic[slug] = struct{}{}
		if amount, ok := raw[slug]; ok && amount.Sign() > 0 {
			staked = append(staked, entity.NewTokenBalance(slug, amount, true))
		}
	}
	if staking != nil {
		seen := make(map[entity.TokenSlug]struct{})
		for _, state := range staking.States {
			if _, ok := synthetic[state.Slug]; ok {
				continue
			}
			if _, dup := seen[state.Slug]; dup {
				continue
			}
			full := state.FullBalance()
			if full.Sign() <= 0 {
				continue
			}
			seen[state.Slug] = struct{}{}
			staked = append(staked, entity.NewTokenBalance(state.Slug, full, true))
		}
	}
	sortBalances(staked, v)
	return staked
}

// sortBalances orders by value today descending, then slug.
func sortBalances(balances []entity.TokenBalance, v *Valuation) {
	values := make(map[entity.TokenSlug]float64, len(balances))
	for _, b := range balances {
		value, _ := v.ValueToday(b)
		values[b.Slug] = value
	}
	sort.SliceStable(balances, func(i, j int) bool {
		vi, vj := values[balances[i].Slug], values[balances[j].Slug]
		if vi != vj {
			return vi > vj
		}
		return balances[i].Slug < balances[j].Slug
	})
}
