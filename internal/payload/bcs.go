package payload

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"ziggly-wallet/pkg/address"
	"ziggly-wallet/pkg/errno"
)

// EncodeU64 BCS u64: 8 字节小端
func EncodeU64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

// EncodeAddress BCS address: 32 字节, 不带长度前缀
func EncodeAddress(addr string) ([]byte, error) {
	b, err := address.Bytes(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", errno.ErrInvalidAddress, addr)
	}
	return b, nil
}

var maxU64 = decimal.NewFromUint64(math.MaxUint64)

// ToUnits 把人类可读数量换算为链上整数单位: floor(amount * 10^decimals)
func ToUnits(amount decimal.Decimal, decimals int32) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s is negative", errno.ErrInvalidAmount, amount)
	}
	units := amount.Shift(decimals).Floor()
	if units.GreaterThan(maxU64) {
		return 0, fmt.Errorf("%w: %s overflows u64 at %d decimals", errno.ErrInvalidAmount, amount, decimals)
	}
	return units.BigInt().Uint64(), nil
}

// FromUnits 反向换算, 用于余额展示
func FromUnits(units uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-decimals)
}
