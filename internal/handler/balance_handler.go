package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ziggly-wallet/internal/balance"
	"ziggly-wallet/internal/handler/response"
	"ziggly-wallet/internal/session"
	"ziggly-wallet/pkg/errno"
	"ziggly-wallet/pkg/validator"
)

type BalanceFetcher interface {
	Fetch(ctx context.Context, addr string) (balance.Snapshot, error)
}

type BalanceHandler struct {
	reader    BalanceFetcher
	sess      interface{ Snapshot() session.State }
	gateToken string
}

// NewBalanceHandler gateToken 非空时, 只有持有该 token 的账户才能看到总价值
func NewBalanceHandler(reader BalanceFetcher, sess interface{ Snapshot() session.State }, gateToken string) *BalanceHandler {
	return &BalanceHandler{reader: reader, sess: sess, gateToken: gateToken}
}

// Get 查询余额, 不带地址时使用会话当前账户
// @Summary 余额快照
// @Tags Wallet
// @Produce json
// @Param address path string false "Supra 地址"
// @Success 200 {object} response.Response
// @Router /api/v1/balances/{address} [get]
func (h *BalanceHandler) Get(c *gin.Context) {
	// 1. 解析地址
	addr := c.Param("address")
	if addr == "" {
		active, ok := h.sess.Snapshot().ActiveAccount()
		if !ok {
			response.Error(c, errno.ErrNotConnected)
			return
		}
		addr = active
	}
	if !validator.IsSupraAddress(addr) {
		response.Error(c, errno.ErrInvalidAddress)
		return
	}

	// 2. 读取链上余额
	snap, err := h.reader.Fetch(c.Request.Context(), addr)
	if err != nil {
		response.Error(c, err)
		return
	}

	// 3. 组合返回, 未持有 gateToken 时不返回 totalUsd
	locked := h.gateToken != "" && !snap.Balance(h.gateToken).IsPositive()
	data := gin.H{
		"address":    snap.Address,
		"tokens":     snap.Tokens,
		"tokenCount": len(snap.Tokens),
		"locked":     locked,
		"fetchedAt":  snap.FetchedAt,
	}
	if !locked {
		data["totalUsd"] = snap.TotalUSD()
	}
	response.Success(c, data)
}
