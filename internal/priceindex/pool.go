package priceindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"ziggly-wallet/internal/rpc"
)

const (
	StatusListed     = "Listed"
	StatusInProgress = "In Progress"
)

// Pool pump::get_pool<pre, main> 的六个返回值, 金额均为最小单位
type Pool struct {
	RealSupra    uint64 `json:"realSupraReserves"`
	RealToken    uint64 `json:"realTokenReserves"`
	VirtualSupra uint64 `json:"virtualSupraReserves"`
	VirtualToken uint64 `json:"virtualTokenReserves"`
	RemainToken  uint64 `json:"remainTokenReserves"`
	Completed    bool   `json:"isCompleted"`
}

func decodePool(values []json.RawMessage) (Pool, error) {
	if len(values) < 6 {
		return Pool{}, fmt.Errorf("get_pool returned %d values, want 6", len(values))
	}
	var nums [5]uint64
	for i := range nums {
		var v rpc.U64
		if err := json.Unmarshal(values[i], &v); err != nil {
			return Pool{}, fmt.Errorf("get_pool value %d: %w", i, err)
		}
		nums[i] = uint64(v)
	}
	completed, err := decodeBool(values[5])
	if err != nil {
		return Pool{}, fmt.Errorf("get_pool value 5: %w", err)
	}
	return Pool{
		RealSupra:    nums[0],
		RealToken:    nums[1],
		VirtualSupra: nums[2],
		VirtualToken: nums[3],
		RemainToken:  nums[4],
		Completed:    completed,
	}, nil
}

// view 返回的 bool 可能是 true 也可能是 "true"
func decodeBool(raw json.RawMessage) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return false, err
		}
		return strconv.ParseBool(s)
	}
	var b bool
	err := json.Unmarshal(raw, &b)
	return b, err
}

// TokensPerSupra = (virtualToken / 10^tokenDecimals) / (virtualSupra / 10^8)
func (p Pool) TokensPerSupra(tokenDecimals, supraDecimals int32) decimal.Decimal {
	if p.VirtualSupra == 0 {
		return decimal.Zero
	}
	tokens := decimal.NewFromUint64(p.VirtualToken).Shift(-tokenDecimals)
	supra := decimal.NewFromUint64(p.VirtualSupra).Shift(-supraDecimals)
	return tokens.DivRound(supra, 12)
}

// BondingProgress 已募集 SUPRA 占目标的百分比, 最多 100
func (p Pool) BondingProgress(target decimal.Decimal, supraDecimals int32) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	current := decimal.NewFromUint64(p.RealSupra).Shift(-supraDecimals)
	progress := current.DivRound(target, 8).Mul(decimal.NewFromInt(100))
	return decimal.Min(progress, decimal.NewFromInt(100))
}

func (p Pool) Status() string {
	if p.Completed {
		return StatusListed
	}
	return StatusInProgress
}

// PumpConfig pump::get_config, 字段顺序与合约一致
type PumpConfig struct {
	FeeWallet            string `json:"fee_wallet"`
	Decimals             uint64 `json:"decimals"`
	Supply               uint64 `json:"supply"`
	LockedPercentage     uint64 `json:"locked_percentage"`
	VirtualSupraReserves uint64 `json:"virtual_aptos_reserves"`
	Fee                  uint64 `json:"fee"`
	GraduateFee          uint64 `json:"graduate_fee"`
	CreateFee            uint64 `json:"create_fee"`
	CreatorFee           uint64 `json:"creator_fee"`
}

type rawPumpConfig struct {
	FeeWallet            string  `json:"fee_wallet"`
	Decimals             rpc.U64 `json:"decimals"`
	Supply               rpc.U64 `json:"supply"`
	LockedPercentage     rpc.U64 `json:"locked_percentage"`
	VirtualSupraReserves rpc.U64 `json:"virtual_aptos_reserves"`
	Fee                  rpc.U64 `json:"fee"`
	GraduateFee          rpc.U64 `json:"graduate_fee"`
	CreateFee            rpc.U64 `json:"create_fee"`
	CreatorFee           rpc.U64 `json:"creator_fee"`
}

// decodePumpConfig 兼容两种返回: 单个 struct 对象, 或按字段展开的数组
func decodePumpConfig(values []json.RawMessage) (PumpConfig, error) {
	var raw rawPumpConfig
	switch {
	case len(values) == 1 && bytes.HasPrefix(bytes.TrimSpace(values[0]), []byte("{")):
		if err := json.Unmarshal(values[0], &raw); err != nil {
			return PumpConfig{}, fmt.Errorf("get_config: %w", err)
		}
	case len(values) >= 9:
		if err := json.Unmarshal(values[0], &raw.FeeWallet); err != nil {
			return PumpConfig{}, fmt.Errorf("get_config fee_wallet: %w", err)
		}
		fields := []*rpc.U64{&raw.Decimals, &raw.Supply, &raw.LockedPercentage, &raw.VirtualSupraReserves,
			&raw.Fee, &raw.GraduateFee, &raw.CreateFee, &raw.CreatorFee}
		for i, f := range fields {
			if err := json.Unmarshal(values[i+1], f); err != nil {
				return PumpConfig{}, fmt.Errorf("get_config value %d: %w", i+1, err)
			}
		}
	default:
		return PumpConfig{}, fmt.Errorf("get_config returned %d values", len(values))
	}
	return PumpConfig{
		FeeWallet:            raw.FeeWallet,
		Decimals:             uint64(raw.Decimals),
		Supply:               uint64(raw.Supply),
		LockedPercentage:     uint64(raw.LockedPercentage),
		VirtualSupraReserves: uint64(raw.VirtualSupraReserves),
		Fee:                  uint64(raw.Fee),
		GraduateFee:          uint64(raw.GraduateFee),
		CreateFee:            uint64(raw.CreateFee),
		CreatorFee:           uint64(raw.CreatorFee),
	}, nil
}
