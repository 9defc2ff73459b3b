package restapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"balance_engine/internal/app/port"
	"balance_engine/internal/domain/entity"
)

// TokenAdmin is the token registry surface the API lists and mutates.
type TokenAdmin interface {
	port.TokenMetadataProvider
	Tokens() []entity.TokenMetadata
	UpsertTokens(tokens []entity.TokenMetadata) error
	SetPrices(quotes []entity.TokenQuote) int
	SupportsCurrency(currency string) bool
}

// PolicyAdmin stores per-account asset policies.
type PolicyAdmin interface {
	port.PolicyProvider
	SetPolicy(id entity.AccountID, p entity.AssetPolicy)
}

// BalanceHandler serves the balance engine over HTTP.
type BalanceHandler struct {
	balances port.BalanceService
	tokens   TokenAdmin
	policies PolicyAdmin
	logger   port.Logger
}

func NewBalanceHandler(balances port.BalanceService, tokens TokenAdmin, policies PolicyAdmin, l port.Logger) *BalanceHandler {
	return &BalanceHandler{balances: balances, tokens: tokens, policies: policies, logger: l}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

func (h *BalanceHandler) decimals(slug entity.TokenSlug) (uint8, bool) {
	md, ok := h.tokens.Token(slug)
	if !ok {
		return 0, false
	}
	return md.Decimals, true
}

// PostEvent accepts one upstream event and enqueues it.
func (h *BalanceHandler) PostEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	var req EventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, err)
		return
	}
	event, err := req.ToEvent()
	if err != nil {
		badRequest(c, err)
		return
	}
	if bc, ok := event.(entity.BaseCurrencyChanged); ok && !h.tokens.SupportsCurrency(bc.Currency) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unsupported currency " + bc.Currency})
		return
	}
	h.balances.Handle(event)
	c.Status(http.StatusAccepted)
}

// GetRawBalances returns the unfiltered ledger entry of an account.
func (h *BalanceHandler) GetRawBalances(c *gin.Context) {
	id := entity.AccountID(c.Param("accountId"))
	raw := h.balances.RawBalances(id)
	out := make(map[entity.TokenSlug]string, len(raw))
	for slug, amount := range raw {
		out[slug] = amount.String()
	}
	c.JSON(http.StatusOK, gin.H{"accountId": id, "balances": out})
}

// GetBalanceData returns the last published aggregate of an account.
func (h *BalanceHandler) GetBalanceData(c *gin.Context) {
	id := entity.AccountID(c.Param("accountId"))
	data, ok := h.balances.AccountBalanceData(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no balance data for account " + string(id)})
		return
	}
	c.JSON(http.StatusOK, h.balanceDataResponse(id, data))
}

func (h *BalanceHandler) balanceDataResponse(id entity.AccountID, data entity.AccountBalanceData) BalanceDataResponse {
	return BalanceDataResponse{
		AccountID:             id,
		WalletTokens:          toBalanceDTOs(data.WalletTokens, h.decimals),
		WalletStaked:          toBalanceDTOs(data.WalletStaked, h.decimals),
		TotalBalance:          data.TotalBalance,
		TotalBalanceYesterday: data.TotalBalanceYesterday,
		TotalBalanceUSD:       data.TotalBalanceUSD,
		PercentChange:         data.PercentChange,
	}
}

// GetTotals sums either the listed accounts (?accounts=a,b) or every mainnet
// account, optionally of one type (?type=mnemonic).
func (h *BalanceHandler) GetTotals(c *gin.Context) {
	if list := c.Query("accounts"); list != "" {
		var ids []entity.AccountID
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, entity.AccountID(id))
			}
		}
		c.JSON(http.StatusOK, h.balances.TotalBalance(ids))
		return
	}
	var accountType *string
	if t, ok := c.GetQuery("type"); ok && t != "" {
		accountType = &t
	}
	c.JSON(http.StatusOK, h.balances.TotalBalanceOfType(accountType))
}

// PutPolicy replaces the asset policy of an account.
func (h *BalanceHandler) PutPolicy(c *gin.Context) {
	id := entity.AccountID(c.Param("accountId"))
	var req PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	policy, err := req.ToPolicy()
	if err != nil {
		badRequest(c, err)
		return
	}
	h.policies.SetPolicy(id, policy)
	h.balances.Handle(entity.AssetPolicyChanged{AccountID: id})
	c.Status(http.StatusAccepted)
}

func (h *BalanceHandler) PutHideNoCost(c *gin.Context) {
	var req HideNoCostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	h.balances.Handle(entity.HideNoCostTokensChanged{Hide: req.Hide})
	c.Status(http.StatusAccepted)
}

// GetTokens lists known tokens with their current price view, ordered by slug.
func (h *BalanceHandler) GetTokens(c *gin.Context) {
	known := h.tokens.Tokens()
	out := make([]TokenDTO, 0, len(known))
	for _, md := range known {
		if priced, ok := h.tokens.Token(md.Slug); ok {
			md = priced
		}
		out = append(out, toTokenDTO(md))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	c.JSON(http.StatusOK, gin.H{"baseCurrency": h.tokens.BaseCurrency(), "tokens": out})
}

// PutTokens upserts token metadata and USD quotes.
func (h *BalanceHandler) PutTokens(c *gin.Context) {
	var req TokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.tokens.UpsertTokens(req.Tokens); err != nil {
		badRequest(c, err)
		return
	}
	stored := h.tokens.SetPrices(req.Quotes)
	h.logger.Debug("Tokens updated via API", "tokens", len(req.Tokens), "quotes", stored)
	h.balances.Handle(entity.TokenMetadataChanged{})
	c.JSON(http.StatusAccepted, gin.H{"tokens": len(req.Tokens), "quotes": stored})
}

func (h *BalanceHandler) PutBaseCurrency(c *gin.Context) {
	var req BaseCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !h.tokens.SupportsCurrency(req.Currency) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unsupported currency " + req.Currency})
		return
	}
	h.balances.Handle(entity.BaseCurrencyChanged{Currency: req.Currency})
	c.Status(http.StatusAccepted)
}

func (h *BalanceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "baseCurrency": h.tokens.BaseCurrency()})
}
