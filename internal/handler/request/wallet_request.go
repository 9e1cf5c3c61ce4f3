package request

// TradeRequest buy/sell, 发送者固定为会话当前账户
type TradeRequest struct {
	Kind          string `json:"kind" binding:"required,oneof=buy sell"`
	Amount        string `json:"amount" binding:"required"`
	MinReceived   string `json:"min_received" binding:"omitempty,decimal_gt0"` // 为空时按滑点策略计算
	SlippagePct   string `json:"slippage_pct" binding:"omitempty,excluded_with=MinReceived"` // 本次交易的滑点百分比, 例如 "2"
	ExpirySeconds int64  `json:"expiry_seconds" binding:"omitempty,min=1,max=3600"`
}

type TransferRequest struct {
	Recipient     string `json:"recipient" binding:"required,supra_addr"`
	Amount        string `json:"amount" binding:"required"`
	ExpirySeconds int64  `json:"expiry_seconds" binding:"omitempty,min=1,max=3600"`
}

type ActivityQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}
