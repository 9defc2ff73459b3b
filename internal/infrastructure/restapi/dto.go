package restapi

import (
	"errors"
	"fmt"
	"math/big"

	jsoniter "github.com/json-iterator/go"

	"balance_engine/internal/domain/entity"
	"balance_engine/internal/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event type tags accepted by POST /api/v1/events.
const (
	EventBalanceUpdate           = "balanceUpdate"
	EventStakingStateUpdate      = "stakingStateUpdate"
	EventAccountDeleted          = "accountDeleted"
	EventBaseCurrencyChanged     = "baseCurrencyChanged"
	EventTokenMetadataChanged    = "tokenMetadataChanged"
	EventHideNoCostTokensChanged = "hideNoCostTokensChanged"
	EventAssetPolicyChanged      = "assetPolicyChanged"
)

// EventRequest is the wire form of an upstream event. Amounts are integer strings,
// optionally "bigint:" prefixed.
type EventRequest struct {
	Type              string            `json:"type"`
	AccountID         entity.AccountID  `json:"accountId,omitempty"`
	Balances          map[string]string `json:"balances,omitempty"`
	RemoveOtherTokens bool              `json:"removeOtherTokens,omitempty"`
	States            []StakingStateDTO `json:"states,omitempty"`
	Currency          string            `json:"currency,omitempty"`
	Hide              bool              `json:"hide,omitempty"`
}

type StakingStateDTO struct {
	ID               string             `json:"id"`
	Type             entity.StakingType `json:"type"`
	Slug             entity.TokenSlug   `json:"slug"`
	TokenSlug        entity.TokenSlug   `json:"tokenSlug"`
	Balance          string             `json:"balance"`
	UnclaimedRewards string             `json:"unclaimedRewards,omitempty"`
	AnnualYield      float64            `json:"annualYield,omitempty"`
}

var errMissingAccount = errors.New("accountId is required")

// ToEvent validates the request and converts it into a domain event.
func (r EventRequest) ToEvent() (entity.Event, error) {
	switch r.Type {
	case EventBalanceUpdate:
		if r.AccountID == "" {
			return nil, errMissingAccount
		}
		balances := make(map[entity.TokenSlug]*big.Int, len(r.Balances))
		for slug, raw := range r.Balances {
			amount, err := utils.ParseAmount(raw)
			if err != nil {
				return nil, fmt.Errorf("balance of %s: %w", slug, err)
			}
			balances[entity.TokenSlug(slug)] = amount
		}
		return entity.BalanceUpdate{AccountID: r.AccountID, Balances: balances, RemoveOtherTokens: r.RemoveOtherTokens}, nil
	case EventStakingStateUpdate:
		if r.AccountID == "" {
			return nil, errMissingAccount
		}
		data := entity.AccountStakingData{AccountID: r.AccountID, States: make([]entity.StakingState, 0, len(r.States))}
		for _, s := range r.States {
			state, err := s.toEntity()
			if err != nil {
				return nil, err
			}
			data.States = append(data.States, state)
		}
		return entity.StakingStateUpdate{Data: data}, nil
	case EventAccountDeleted:
		if r.AccountID == "" {
			return nil, errMissingAccount
		}
		return entity.AccountDeleted{AccountID: r.AccountID}, nil
	case EventBaseCurrencyChanged:
		if r.Currency == "" {
			return nil, errors.New("currency is required")
		}
		return entity.BaseCurrencyChanged{Currency: r.Currency}, nil
	case EventTokenMetadataChanged:
		return entity.TokenMetadataChanged{}, nil
	case EventHideNoCostTokensChanged:
		return entity.HideNoCostTokensChanged{Hide: r.Hide}, nil
	case EventAssetPolicyChanged:
		if r.AccountID == "" {
			return nil, errMissingAccount
		}
		return entity.AssetPolicyChanged{AccountID: r.AccountID}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", r.Type)
	}
}

func (s StakingStateDTO) toEntity() (entity.StakingState, error) {
	if s.Slug == "" {
		return entity.StakingState{}, errors.New("staking state without slug")
	}
	balance, err := utils.ParseAmount(s.Balance)
	if err != nil {
		return entity.StakingState{}, fmt.Errorf("staking %s balance: %w", s.Slug, err)
	}
	state := entity.StakingState{
		ID:          s.ID,
		Type:        s.Type,
		Slug:        s.Slug,
		TokenSlug:   s.TokenSlug,
		Balance:     balance,
		AnnualYield: s.AnnualYield,
	}
	if s.UnclaimedRewards != "" {
		rewards, err := utils.ParseAmount(s.UnclaimedRewards)
		if err != nil {
			return entity.StakingState{}, fmt.Errorf("staking %s rewards: %w", s.Slug, err)
		}
		state.UnclaimedRewards = rewards
	}
	return state, nil
}

// TokenBalanceDTO is the wire form of entity.TokenBalance.
type TokenBalanceDTO struct {
	Slug      entity.TokenSlug `json:"slug"`
	Amount    string           `json:"amount"`
	Formatted string           `json:"formatted,omitempty"`
	IsStaking bool             `json:"isStaking"`
}

// BalanceDataResponse is the wire form of entity.AccountBalanceData.
type BalanceDataResponse struct {
	AccountID             entity.AccountID          `json:"accountId"`
	WalletTokens          []TokenBalanceDTO         `json:"walletTokens"`
	WalletStaked          []TokenBalanceDTO         `json:"walletStaked"`
	TotalBalance          entity.BaseCurrencyAmount `json:"totalBalance"`
	TotalBalanceYesterday entity.BaseCurrencyAmount `json:"totalBalanceYesterday"`
	TotalBalanceUSD       float64                   `json:"totalBalanceUsd"`
	PercentChange         *float64                  `json:"percentChange"`
}

type decimalsLookup func(slug entity.TokenSlug) (uint8, bool)

func toBalanceDTOs(balances []entity.TokenBalance, decimals decimalsLookup) []TokenBalanceDTO {
	out := make([]TokenBalanceDTO, 0, len(balances))
	for _, b := range balances {
		dto := TokenBalanceDTO{Slug: b.Slug, Amount: b.Amount.String(), IsStaking: b.IsStaking}
		if d, ok := decimals(b.Slug); ok {
			dto.Formatted = utils.FormatBigInt(b.Amount, d)
		}
		out = append(out, dto)
	}
	return out
}

// TokenDTO is a token with its price view. Prices are null when unknown.
type TokenDTO struct {
	entity.TokenMetadata
	Price    *float64 `json:"price"`
	Price24h *float64 `json:"price24h"`
	PriceUSD *float64 `json:"priceUsd"`
}

func toTokenDTO(md entity.TokenMetadata) TokenDTO {
	dto := TokenDTO{TokenMetadata: md}
	if md.HasPrice {
		price, price24h, priceUSD := md.Price, md.Price24h, md.PriceUSD
		dto.Price, dto.Price24h, dto.PriceUSD = &price, &price24h, &priceUSD
	}
	return dto
}

// TokensRequest is the body of PUT /api/v1/tokens.
type TokensRequest struct {
	Tokens []entity.TokenMetadata `json:"tokens"`
	Quotes []entity.TokenQuote    `json:"quotes"`
}

// PolicyRequest is the body of PUT /api/v1/accounts/:accountId/policy.
// hideNoCostTokens is a global setting and is rejected here.
type PolicyRequest struct {
	AlwaysShown      []entity.TokenSlug `json:"alwaysShownSlugs"`
	AlwaysHidden     []entity.TokenSlug `json:"alwaysHiddenSlugs"`
	Imported         []entity.TokenSlug `json:"importedSlugs"`
	Deleted          []entity.TokenSlug `json:"deletedSlugs"`
	HideNoCostTokens *bool              `json:"hideNoCostTokens,omitempty"`
}

var errPolicyHideNoCost = errors.New("hideNoCostTokens is global, use PUT /api/v1/settings/hide-no-cost")

// ToPolicy validates the request and converts it into an AssetPolicy.
func (r PolicyRequest) ToPolicy() (entity.AssetPolicy, error) {
	if r.HideNoCostTokens != nil {
		return entity.AssetPolicy{}, errPolicyHideNoCost
	}
	return entity.AssetPolicy{
		AlwaysShown:  r.AlwaysShown,
		AlwaysHidden: r.AlwaysHidden,
		Imported:     r.Imported,
		Deleted:      r.Deleted,
	}, nil
}

// HideNoCostRequest is the body of PUT /api/v1/settings/hide-no-cost.
type HideNoCostRequest struct {
	Hide bool `json:"hide"`
}

// BaseCurrencyRequest is the body of PUT /api/v1/base-currency.
type BaseCurrencyRequest struct {
	Currency string `json:"currency"`
}

// ErrorResponse is returned with every 4xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
