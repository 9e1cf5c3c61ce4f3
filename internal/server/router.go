package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ziggly-wallet/internal/handler"
	"ziggly-wallet/pkg/monitor"
)

// Handlers 路由依赖的所有 handler
type Handlers struct {
	Session  *handler.SessionHandler
	Balance  *handler.BalanceHandler
	Trade    *handler.TradeHandler
	Market   *handler.MarketHandler
	Block    *handler.BlockHandler
	Provider http.Handler // 钱包页面通过 websocket 接入
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 初始化监控指标
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		sess := api.Group("/session")
		sess.GET("", h.Session.Get)
		sess.POST("/connect", h.Session.Connect)
		sess.POST("/disconnect", h.Session.Disconnect)
		sess.POST("/switch-network", h.Session.SwitchNetwork)

		api.GET("/balances", h.Balance.Get)
		api.GET("/balances/:address", h.Balance.Get)

		api.POST("/trade", h.Trade.Trade)
		api.POST("/transfer", h.Trade.Transfer)

		api.GET("/price-index", h.Market.PriceIndex)
		api.GET("/pump-config", h.Market.PumpConfig)
		api.GET("/activity", h.Market.Activity)
		api.GET("/latest-block", h.Block.LatestBlock)

		if h.Provider != nil {
			api.GET("/provider/ws", gin.WrapH(h.Provider))
		}
	}

	return r
}
