package restapi

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterOptions configures SetupRouter. A nil EventLimiter disables rate limiting.
type RouterOptions struct {
	Logger       *zap.Logger
	EventLimiter *rate.Limiter
}

// SetupRouter builds the gin engine with every API route registered.
func SetupRouter(h *BalanceHandler, opts RouterOptions) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	if opts.Logger != nil {
		router.Use(ZapLoggerMiddleware(opts.Logger))
	}
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		events := v1.Group("/events")
		if opts.EventLimiter != nil {
			events.Use(RateLimitMiddleware(opts.EventLimiter))
		}
		events.POST("", h.PostEvent)

		v1.GET("/accounts/:accountId/balances", h.GetRawBalances)
		v1.GET("/accounts/:accountId/balance-data", h.GetBalanceData)
		v1.PUT("/accounts/:accountId/policy", h.PutPolicy)
		v1.GET("/totals", h.GetTotals)
		v1.PUT("/settings/hide-no-cost", h.PutHideNoCost)
		v1.PUT("/base-currency", h.PutBaseCurrency)
		v1.GET("/tokens", h.GetTokens)
		v1.PUT("/tokens", h.PutTokens)
		v1.GET("/stream", h.Stream)
	}

	return router
}
