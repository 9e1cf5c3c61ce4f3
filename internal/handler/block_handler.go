package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"ziggly-wallet/internal/blocktracker"
	"ziggly-wallet/internal/handler/response"
)

type LatestBlockReader interface {
	Latest(ctx context.Context) (blocktracker.LatestBlock, error)
}

type BlockHandler struct {
	tracker LatestBlockReader
}

func NewBlockHandler(tracker LatestBlockReader) *BlockHandler {
	return &BlockHandler{tracker: tracker}
}

// LatestBlock 由 0x1 最新交易估算的主网最新块
// @Summary 最新块
// @Tags Chain
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/latest-block [get]
func (h *BlockHandler) LatestBlock(c *gin.Context) {
	lb, err := h.tracker.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, lb)
}
