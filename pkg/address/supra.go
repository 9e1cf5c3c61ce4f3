package address

import (
	"encoding/hex"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Supra (Move) 账户地址固定 32 字节
const Length = 32

var ErrInvalid = errors.New("invalid supra address")

// Bytes 把 hex 地址解析为 32 字节, 短地址左侧补零 ("0x1" -> 0x00..01)
func Bytes(addr string) ([]byte, error) {
	s := strings.TrimSpace(addr)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, ErrInvalid
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, ErrInvalid
	}
	if len(raw) > Length {
		return nil, ErrInvalid
	}
	return common.LeftPadBytes(raw, Length), nil
}

// Normalize 返回 0x + 64 位小写 hex
func Normalize(addr string) (string, error) {
	b, err := Bytes(addr)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b), nil
}

// Equal 忽略大小写和前导零比较两个地址
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}
	return na == nb
}
