package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"ziggly-wallet/internal/activity"
	"ziggly-wallet/internal/event"
	"ziggly-wallet/internal/executor"
	"ziggly-wallet/internal/handler/request"
	"ziggly-wallet/internal/handler/response"
	"ziggly-wallet/internal/payload"
	"ziggly-wallet/pkg/errno"
)

type TxExecutor interface {
	Execute(ctx context.Context, intent payload.Intent) (executor.Result, error)
}

type TradeHandler struct {
	exec     TxExecutor
	policy   payload.MinimumReceivedPolicy
	recorder *activity.Recorder
	native   string
	token    string
}

// NewTradeHandler native/token 为 activity 记录里的资产名
func NewTradeHandler(exec TxExecutor, policy payload.MinimumReceivedPolicy, recorder *activity.Recorder, native, token string) *TradeHandler {
	return &TradeHandler{exec: exec, policy: policy, recorder: recorder, native: native, token: token}
}

// Trade 在 bonding curve 上买入或卖出
// @Summary buy / sell
// @Tags Trade
// @Accept json
// @Produce json
// @Param request body request.TradeRequest true "Trade Request"
// @Success 200 {object} response.Response
// @Router /api/v1/trade [post]
func (h *TradeHandler) Trade(c *gin.Context) {
	// 1. 绑定参数
	var req request.TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	amount, err := payload.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	kind := payload.Kind(req.Kind)
	intent := payload.Intent{
		Kind:          kind,
		Amount:        amount,
		ExpirySeconds: req.ExpirySeconds,
	}

	// 2. minimum received: 请求里给了就用, 否则交给执行器按策略计算
	if err := h.applyMinimum(&intent, req); err != nil {
		response.Error(c, err)
		return
	}

	// 3. 执行
	res, err := h.exec.Execute(c.Request.Context(), intent)
	if err != nil {
		response.Error(c, err)
		return
	}

	asset := h.native
	if kind == payload.KindSell {
		asset = h.token
	}
	h.record(c.Request.Context(), res, kind, amount, asset, "")
	response.Success(c, gin.H{
		"txId":            res.TxID,
		"explorerUrl":     res.ExplorerURL,
		"sequenceNumber":  res.SequenceNumber,
		"minimumReceived": res.MinimumReceived,
	})
}

// Transfer 转账 SUPRA
// @Summary transfer
// @Tags Trade
// @Accept json
// @Produce json
// @Param request body request.TransferRequest true "Transfer Request"
// @Success 200 {object} response.Response
// @Router /api/v1/transfer [post]
func (h *TradeHandler) Transfer(c *gin.Context) {
	var req request.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	amount, err := payload.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.exec.Execute(c.Request.Context(), payload.Intent{
		Kind:          payload.KindTransfer,
		Amount:        amount,
		Recipient:     req.Recipient,
		ExpirySeconds: req.ExpirySeconds,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.record(c.Request.Context(), res, payload.KindTransfer, amount, h.native, req.Recipient)
	response.Success(c, gin.H{
		"txId":           res.TxID,
		"explorerUrl":    res.ExplorerURL,
		"sequenceNumber": res.SequenceNumber,
	})
}

// applyMinimum 显式 min_received > 本次 slippage_pct > 服务默认策略
func (h *TradeHandler) applyMinimum(intent *payload.Intent, req request.TradeRequest) error {
	if raw := strings.TrimSpace(req.MinReceived); raw != "" {
		minimum, err := decimal.NewFromString(raw) // 已经过 decimal_gt0 校验
		if err != nil {
			return errno.ErrBind.WithMessage("min_received 必须是大于 0 的数字")
		}
		intent.MinimumReceived = minimum
		return nil
	}
	if raw := strings.TrimSpace(req.SlippagePct); raw != "" {
		pct, err := decimal.NewFromString(raw)
		if err != nil {
			return errno.ErrBind.WithMessage("slippage_pct 必须是数字")
		}
		policy, err := payload.NewSlippageTolerance(pct)
		if err != nil {
			return errno.ErrBind.WithMessage(err.Error())
		}
		intent.Policy = policy
		return nil
	}
	intent.Policy = h.policy
	return nil
}

func (h *TradeHandler) record(ctx context.Context, res executor.Result, kind payload.Kind, amount decimal.Decimal, asset, recipient string) {
	h.recorder.Record(ctx, event.TransactionSubmitted{
		TxID:           res.TxID,
		Kind:           string(kind),
		Sender:         res.Payload.Sender,
		Recipient:      recipient,
		Amount:         amount.String(),
		Asset:          asset,
		SequenceNumber: res.SequenceNumber,
		ExplorerURL:    res.ExplorerURL,
		SubmittedAt:    time.Now().UTC(),
	})
}
