package payload

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"ziggly-wallet/pkg/errno"
)

// Kind 交易类型
type Kind string

const (
	KindBuy      Kind = "buy"
	KindSell     Kind = "sell"
	KindTransfer Kind = "transfer"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBuy, KindSell, KindTransfer:
		return true
	}
	return false
}

// Intent 一次交易/转账请求. Amount 与 MinimumReceived 为人类可读单位 (例如 10 SUPRA).
type Intent struct {
	Kind            Kind
	Sender          string
	Amount          decimal.Decimal
	MinimumReceived decimal.Decimal // 仅 buy/sell
	Recipient       string          // 仅 transfer
	ExpirySeconds   int64           // <= 0 使用 Builder 默认窗口

	// Policy 非空时由执行器在前置检查通过后计算 MinimumReceived, 覆盖上面的值
	Policy MinimumReceivedPolicy
}

// ParseAmount parses a user-entered decimal amount. Anything that is not a
// finite number greater than zero is ErrInvalidAmount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", errno.ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than zero", errno.ErrInvalidAmount, d)
	}
	return d, nil
}

// AmountFromFloat 用于 CLI/计算结果, 拒绝 NaN 和 ±Inf
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: non-finite value", errno.ErrInvalidAmount)
	}
	d := decimal.NewFromFloat(f)
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s must be greater than zero", errno.ErrInvalidAmount, d)
	}
	return d, nil
}
