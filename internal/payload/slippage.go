package payload

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"ziggly-wallet/pkg/errno"
)

var hundred = decimal.NewFromInt(100)

// MinimumReceivedPolicy derives the minimum output of a trade. The two
// trading screens of the dapp disagree on the formula, so both are
// available and the server picks one from config.
type MinimumReceivedPolicy interface {
	MinimumReceived(ctx context.Context, kind Kind, amount decimal.Decimal) (decimal.Decimal, error)
}

// SlippageTolerance: min = amount * (1 - pct/100)
type SlippageTolerance struct {
	Pct decimal.Decimal
}

func NewSlippageTolerance(pct decimal.Decimal) (SlippageTolerance, error) {
	if pct.IsNegative() || pct.GreaterThanOrEqual(hundred) {
		return SlippageTolerance{}, fmt.Errorf("slippage pct must be in [0, 100), got %s", pct)
	}
	return SlippageTolerance{Pct: pct}, nil
}

func (p SlippageTolerance) MinimumReceived(_ context.Context, kind Kind, amount decimal.Decimal) (decimal.Decimal, error) {
	if kind == KindTransfer {
		return decimal.Zero, nil
	}
	return amount.Mul(decimal.NewFromInt(1).Sub(p.Pct.Div(hundred))), nil
}

// RatioSource 提供 1 个 token 值多少 SUPRA
type RatioSource interface {
	SupraPerToken(ctx context.Context) (decimal.Decimal, error)
}

// FixedRatio 配置里写死的汇率
type FixedRatio decimal.Decimal

func (r FixedRatio) SupraPerToken(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}

// DefaultSupraPerToken 8976 SUPRA / 32,150,000 ZIGGLY
var DefaultSupraPerToken = decimal.NewFromInt(8976).Div(decimal.NewFromInt(32150000))

// PriceRatio:
//
//	buy : min tokens = amount / supraPerToken * factor
//	sell: min SUPRA  = amount * supraPerToken * factor
type PriceRatio struct {
	Source RatioSource
	Factor decimal.Decimal
}

func (p PriceRatio) MinimumReceived(ctx context.Context, kind Kind, amount decimal.Decimal) (decimal.Decimal, error) {
	if kind == KindTransfer {
		return decimal.Zero, nil
	}
	ratio, err := p.Source.SupraPerToken(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !ratio.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: supra per token ratio %s", errno.ErrInvalidAmount, ratio)
	}
	switch kind {
	case KindBuy:
		return amount.Div(ratio).Mul(p.Factor), nil
	case KindSell:
		return amount.Mul(ratio).Mul(p.Factor), nil
	}
	return decimal.Zero, fmt.Errorf("unknown trade kind %q", kind)
}
