package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ziggly-wallet/internal/event"
	"ziggly-wallet/internal/handler/request"
	"ziggly-wallet/internal/handler/response"
	"ziggly-wallet/internal/priceindex"
)

type PriceIndex interface {
	Index(ctx context.Context) (priceindex.Index, error)
	PumpConfig(ctx context.Context) (priceindex.PumpConfig, error)
}

type ActivityFeed interface {
	Recent(limit int) []event.TransactionSubmitted
}

type MarketHandler struct {
	prices PriceIndex
	feed   ActivityFeed
}

func NewMarketHandler(prices PriceIndex, feed ActivityFeed) *MarketHandler {
	return &MarketHandler{prices: prices, feed: feed}
}

// PriceIndex 每个 token 的 bonding curve 状态
// @Router /api/v1/price-index [get]
func (h *MarketHandler) PriceIndex(c *gin.Context) {
	idx, err := h.prices.Index(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, idx)
}

// @Router /api/v1/pump-config [get]
func (h *MarketHandler) PumpConfig(c *gin.Context) {
	cfg, err := h.prices.PumpConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, cfg)
}

// Activity 最近提交的交易
// @Router /api/v1/activity [get]
func (h *MarketHandler) Activity(c *gin.Context) {
	var q request.ActivityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	items := h.feed.Recent(q.Limit)
	response.Success(c, gin.H{"items": items, "count": len(items)})
}
